// Package channel connects chat platforms to the study services. The
// Dispatcher parses prefix commands and renders replies; platform adapters
// only move messages in and out.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"studybuddy/internal/ai"
	"studybuddy/internal/app"
	"studybuddy/internal/prompt"
	"studybuddy/internal/retrieval"
)

const (
	maxReplyLen           = 1900
	defaultConfirmTimeout = 30 * time.Second
)

type Attachment struct {
	Filename string
	URL      string
	Size     int
}

// Message is one inbound chat message.
type Message struct {
	UserID      string
	ChannelID   string
	Content     string
	Attachments []Attachment
}

// Fetcher downloads an attachment, failing once more than limit bytes arrive.
type Fetcher func(ctx context.Context, url string, limit int) ([]byte, error)

type DispatcherConfig struct {
	Subjects  *app.SubjectService
	Questions *app.QuestionService
	Library   *app.LibraryService
	Study     *app.StudyService
	Prefix    string
	Fetch     Fetcher
	// ConfirmTimeout bounds how long a deletesubject confirmation waits.
	ConfirmTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

type pendingDelete struct {
	subject string
	expires time.Time
}

type Dispatcher struct {
	cfg    DispatcherConfig
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]pendingDelete
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.Fetch == nil {
		cfg.Fetch = HTTPFetcher(&http.Client{Timeout: 30 * time.Second})
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{cfg: cfg, logger: cfg.Logger, pending: make(map[string]pendingDelete)}
}

// HTTPFetcher downloads attachments with client.
func HTTPFetcher(client *http.Client) Fetcher {
	return func(ctx context.Context, url string, limit int) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download attachment failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download attachment failed: status %d", resp.StatusCode)
		}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
		if err != nil {
			return nil, fmt.Errorf("download attachment failed: %w", err)
		}
		if len(raw) > limit {
			return nil, fmt.Errorf("attachment exceeds %d bytes: %w", limit, retrieval.ErrUploadTooLarge)
		}
		return raw, nil
	}
}

// Handle runs the command in msg and returns the replies to send, each at
// most maxReplyLen long. Messages that are not commands yield nil.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) []string {
	content := strings.TrimSpace(msg.Content)
	if reply, ok := d.resolvePending(ctx, msg, content); ok {
		return splitMessage(reply, maxReplyLen)
	}
	if !strings.HasPrefix(content, d.cfg.Prefix) {
		return nil
	}
	name, args := splitCommand(strings.TrimPrefix(content, d.cfg.Prefix))
	if name == "" {
		return nil
	}

	reply, err := d.run(ctx, msg, name, args)
	if err != nil {
		d.logger.Info("command failed", "user", msg.UserID, "command", name, "error", err)
		reply = d.userMessage(err)
	}
	if reply == "" {
		return nil
	}
	return splitMessage(reply, maxReplyLen)
}

func (d *Dispatcher) run(ctx context.Context, msg Message, name, args string) (string, error) {
	switch name {
	case "newsubject":
		return d.newSubject(msg.UserID, args)
	case "subjects":
		return d.listSubjects(msg.UserID)
	case "switch":
		subject, err := d.cfg.Subjects.Switch(msg.UserID, args)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Switched to **%s**\nGame: **%s**", subject.Name, d.cfg.Subjects.GameOf(subject)), nil
	case "setgame":
		return d.setGame(msg.UserID, args)
	case "deletesubject":
		return d.askDelete(msg, args)
	case "active":
		return d.showActive(msg.UserID)
	case "addq":
		return d.addQuestion(msg.UserID, args)
	case "questions":
		return d.listQuestions(msg.UserID)
	case "removeq":
		n, err := strconv.Atoi(args)
		if err != nil {
			return fmt.Sprintf("Usage: `%sremoveq <number>`", d.cfg.Prefix), nil
		}
		entry, err := d.cfg.Questions.Remove(msg.UserID, n)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Removed question #%d: %s", n, entry.Question), nil
	case "upload":
		return d.upload(ctx, msg, args)
	case "list":
		return d.listDocuments(msg.UserID)
	case "maketest":
		return d.makeTest(ctx, msg.UserID, args)
	case "teach":
		style, topic := d.splitStyle(args)
		if topic == "" {
			return fmt.Sprintf("Please provide a topic!\nUsage: `%steach genz cellular respiration`", d.cfg.Prefix), nil
		}
		res, err := d.cfg.Study.Teach(ctx, app.StudyInput{UserID: msg.UserID, Style: style, Topic: topic})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("**%s - Mini-Lesson: %s**\n%s", res.Subject, topic, res.Text), nil
	case "ask":
		style, question := d.splitStyle(args)
		if question == "" {
			return fmt.Sprintf("Please ask a question!\nUsage: `%sask genz what is mitochondria?`", d.cfg.Prefix), nil
		}
		res, err := d.cfg.Study.Ask(ctx, app.StudyInput{UserID: msg.UserID, Style: style, Topic: question})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("**Answer (%s):**\n%s", res.Subject, res.Text), nil
	case "styles":
		return d.listStyles(), nil
	case "commands", "help":
		return d.help(), nil
	}
	return "", nil
}

func (d *Dispatcher) newSubject(userID, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return fmt.Sprintf("Please provide a subject name!\nUsage: `%snewsubject Biology` or `%snewsubject Pokemon Biology`",
			d.cfg.Prefix, d.cfg.Prefix), nil
	}
	// a single word is the name; otherwise the first word is the game
	game, name := "", args
	if len(fields) > 1 {
		game, name = fields[0], strings.Join(fields[1:], " ")
	}
	subject, err := d.cfg.Subjects.Create(userID, name, game)
	if err != nil {
		return "", err
	}
	active, err := d.cfg.Subjects.Active(userID)
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("Created new subject: **%s**\nMnemonic game: **%s**", subject.Name, d.cfg.Subjects.GameOf(subject))
	if active.Key == subject.Key {
		reply += fmt.Sprintf("\n\nThis is now your active subject! Upload materials with `%supload`", d.cfg.Prefix)
	}
	return reply, nil
}

func (d *Dispatcher) listSubjects(userID string) (string, error) {
	subjects, err := d.cfg.Subjects.List(userID)
	if err != nil {
		return "", err
	}
	if len(subjects) == 0 {
		return fmt.Sprintf("You don't have any subjects yet!\nCreate one with: `%snewsubject Biology`", d.cfg.Prefix), nil
	}
	var sb strings.Builder
	sb.WriteString("**Your Subjects**\n")
	for _, s := range subjects {
		marker := ""
		if s.Active {
			marker = " (active)"
		}
		fmt.Fprintf(&sb, "- %s%s, game: %s\n", s.Name, marker, d.cfg.Subjects.GameOf(&s.Subject))
	}
	fmt.Fprintf(&sb, "Switch subjects with: `%sswitch <subject name>`", d.cfg.Prefix)
	return sb.String(), nil
}

func (d *Dispatcher) setGame(userID, game string) (string, error) {
	if game == "" {
		subject, err := d.cfg.Subjects.Active(userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Current game for **%s**: **%s**\n\nChange it with: `%ssetgame <game name>`",
			subject.Name, d.cfg.Subjects.GameOf(subject), d.cfg.Prefix), nil
	}
	subject, err := d.cfg.Subjects.SetGame(userID, game)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Set **%s** mnemonic game to: **%s**", subject.Name, game), nil
}

func (d *Dispatcher) askDelete(msg Message, name string) (string, error) {
	if name == "" {
		return fmt.Sprintf("Usage: `%sdeletesubject <name>`", d.cfg.Prefix), nil
	}
	d.mu.Lock()
	d.pending[pendingKey(msg)] = pendingDelete{subject: name, expires: d.cfg.Now().Add(d.cfg.ConfirmTimeout)}
	d.mu.Unlock()
	return fmt.Sprintf("Are you sure you want to delete **%s** and ALL its files?\nType `yes` to confirm or `no` to cancel.", name), nil
}

// resolvePending consumes a deletesubject confirmation. An expired
// confirmation is dropped and the message handled normally.
func (d *Dispatcher) resolvePending(ctx context.Context, msg Message, content string) (string, bool) {
	key := pendingKey(msg)
	d.mu.Lock()
	p, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.mu.Unlock()
	if !ok || d.cfg.Now().After(p.expires) {
		return "", false
	}
	if !strings.EqualFold(content, "yes") {
		return "Cancelled deletion.", true
	}
	if err := d.cfg.Subjects.Delete(ctx, msg.UserID, p.subject); err != nil {
		d.logger.Info("delete subject failed", "user", msg.UserID, "subject", p.subject, "error", err)
		return d.userMessage(err), true
	}
	return fmt.Sprintf("Deleted **%s** and all its files.", p.subject), true
}

func (d *Dispatcher) showActive(userID string) (string, error) {
	subject, err := d.cfg.Subjects.Active(userID)
	if err != nil {
		return "", err
	}
	docs, err := d.cfg.Library.List(userID)
	if err != nil {
		return "", err
	}
	questions, err := d.cfg.Questions.List(userID)
	if err != nil {
		return "", err
	}
	lectures, practice := 0, 0
	for _, doc := range docs {
		if doc.Folder == retrieval.PracticeTest {
			practice++
		} else {
			lectures++
		}
	}
	return fmt.Sprintf("**%s**\nMnemonic game: %s\nLectures: %d\nPractice tests: %d\nQuestion bank: %d",
		subject.Name, d.cfg.Subjects.GameOf(subject), lectures, practice, len(questions)), nil
}

func (d *Dispatcher) addQuestion(userID, args string) (string, error) {
	question, answer, _ := strings.Cut(args, "||")
	entry, err := d.cfg.Questions.Add(userID, question, answer)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			return fmt.Sprintf("Usage: `%saddq <question> [|| answer]`", d.cfg.Prefix), nil
		}
		return "", err
	}
	subject, err := d.cfg.Subjects.Active(userID)
	if err != nil {
		return "", err
	}
	list, err := d.cfg.Questions.List(userID)
	if err != nil {
		return "", err
	}
	d.logger.Debug("question added", "user", userID, "id", entry.ID)
	return fmt.Sprintf("Added question to **%s** question bank!\nTotal questions: %d", subject.Name, len(list)), nil
}

func (d *Dispatcher) listQuestions(userID string) (string, error) {
	list, err := d.cfg.Questions.List(userID)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return fmt.Sprintf("No questions in the question bank yet!\nAdd some with `%saddq <question>`", d.cfg.Prefix), nil
	}
	var sb strings.Builder
	sb.WriteString("**Question Bank**\n")
	for i, q := range list {
		fmt.Fprintf(&sb, "#%d %s\n", i+1, truncate(q.Question, 100))
	}
	fmt.Fprintf(&sb, "Remove questions with: `%sremoveq <number>`", d.cfg.Prefix)
	return sb.String(), nil
}

func (d *Dispatcher) upload(ctx context.Context, msg Message, args string) (string, error) {
	folder, ok := retrieval.ParseFolderKind(args)
	if !ok {
		return fmt.Sprintf("Please specify either 'lecture' or 'practice'\nUsage: `%supload lecture` (with a PDF or text file attached)", d.cfg.Prefix), nil
	}
	if len(msg.Attachments) == 0 {
		return "Please attach a PDF or text file to your message!", nil
	}
	// the active subject is checked before downloading anything
	if _, err := d.cfg.Subjects.Active(msg.UserID); err != nil {
		return "", err
	}

	limit := d.cfg.Library.MaxUploadBytes()
	var sb strings.Builder
	for _, att := range msg.Attachments {
		if att.Size > limit {
			fmt.Fprintf(&sb, "%s: %s\n", att.Filename, d.userMessage(retrieval.ErrUploadTooLarge))
			continue
		}
		raw, err := d.cfg.Fetch(ctx, att.URL, limit)
		if err == nil {
			var res *app.UploadResult
			res, err = d.cfg.Library.Upload(ctx, app.UploadInput{UserID: msg.UserID, Filename: att.Filename, Folder: folder, Raw: raw})
			if err == nil {
				verb := "Uploaded"
				if res.Replaced {
					verb = "Replaced"
				}
				fmt.Fprintf(&sb, "%s %s to %s (%d chunks)\n", verb, res.Document.OriginName, folder.Title(), res.Document.ChunkCount)
				continue
			}
		}
		d.logger.Info("attachment upload failed", "user", msg.UserID, "file", att.Filename, "error", err)
		fmt.Fprintf(&sb, "%s: %s\n", att.Filename, d.userMessage(err))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (d *Dispatcher) listDocuments(userID string) (string, error) {
	subject, err := d.cfg.Subjects.Active(userID)
	if err != nil {
		return "", err
	}
	docs, err := d.cfg.Library.List(userID)
	if err != nil {
		return "", err
	}
	var lectures, practice []string
	for _, doc := range docs {
		line := "- " + doc.OriginName
		if doc.Folder == retrieval.PracticeTest {
			practice = append(practice, line)
		} else {
			lectures = append(lectures, line)
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s - Study Materials**\n", subject.Name)
	sb.WriteString("Lectures:\n")
	writeList(&sb, lectures, "No lectures uploaded")
	sb.WriteString("Practice Tests:\n")
	writeList(&sb, practice, "No practice tests uploaded")
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (d *Dispatcher) makeTest(ctx context.Context, userID, args string) (string, error) {
	n := 0
	topic := args
	if first, rest, _ := strings.Cut(args, " "); first != "" {
		if v, err := strconv.Atoi(first); err == nil {
			n, topic = v, strings.TrimSpace(rest)
		}
	}
	res, err := d.cfg.Study.MakeTest(ctx, app.StudyInput{UserID: userID, Topic: topic, Questions: n})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("**%s - Practice Test:**\n%s", res.Subject, res.Text), nil
}

// splitStyle reads an optional leading style name.
func (d *Dispatcher) splitStyle(args string) (string, string) {
	first, rest, _ := strings.Cut(args, " ")
	for _, style := range d.cfg.Study.Styles() {
		if strings.EqualFold(style.Name, first) {
			return style.Name, strings.TrimSpace(rest)
		}
	}
	return prompt.DefaultStyle, args
}

func (d *Dispatcher) listStyles() string {
	var sb strings.Builder
	sb.WriteString("**Teaching Styles**\n")
	for _, s := range d.cfg.Study.Styles() {
		fmt.Fprintf(&sb, "- **%s**: %s\n", s.Name, s.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (d *Dispatcher) help() string {
	p := d.cfg.Prefix
	lines := []string{
		"**Commands**",
		p + "newsubject [game] <name> - create a subject",
		p + "subjects - list your subjects",
		p + "switch <name> - change the active subject",
		p + "setgame [game] - show or set the mnemonic game",
		p + "deletesubject <name> - delete a subject and its files",
		p + "active - show the active subject",
		p + "addq <question> [|| answer] - add to the question bank",
		p + "questions - list the question bank",
		p + "removeq <n> - remove question n",
		p + "upload lecture|practice - upload attached PDF or text files",
		p + "list - list uploaded materials",
		p + "maketest [n] [topic] - generate a practice test",
		p + "teach [style] <topic> - mini-lesson with citations",
		p + "ask [style] <question> - answer with citations",
		p + "styles - list teaching styles",
	}
	return strings.Join(lines, "\n")
}

// userMessage turns a service error into a reply.
func (d *Dispatcher) userMessage(err error) string {
	p := d.cfg.Prefix
	switch {
	case errors.Is(err, app.ErrNoActiveSubject):
		return fmt.Sprintf("No active subject! Create one with `%snewsubject <name>`", p)
	case errors.Is(err, app.ErrSubjectNotFound):
		return fmt.Sprintf("Subject not found! View your subjects with `%ssubjects`", p)
	case errors.Is(err, app.ErrSubjectExists):
		return "That subject already exists!"
	case errors.Is(err, app.ErrQuestionNotFound):
		return "Question not found!"
	case errors.Is(err, retrieval.ErrDocumentNotFound):
		return "Document not found."
	case errors.Is(err, retrieval.ErrUploadTooLarge):
		return fmt.Sprintf("File too large (max %d MB).", d.cfg.Library.MaxUploadBytes()>>20)
	case errors.Is(err, retrieval.ErrUnsupportedFormat):
		return "Please upload a PDF or text file!"
	case errors.Is(err, retrieval.ErrExtractionFailed):
		return "Couldn't extract any text from that file."
	case errors.Is(err, prompt.ErrUnknownStyle):
		return fmt.Sprintf("Unknown style. See `%sstyles`.", p)
	case errors.Is(err, app.ErrNoRelevantMaterial):
		return fmt.Sprintf("Nothing in your uploaded material covers that. Upload more with `%supload`.", p)
	case errors.Is(err, app.ErrInvalidInput):
		return fmt.Sprintf("Invalid input. See `%scommands`.", p)
	case errors.Is(err, app.ErrLLMConfig), errors.Is(err, ai.ErrNotConfigured):
		return "The AI backend is not configured."
	}
	return "Something went wrong. Please try again."
}

func pendingKey(msg Message) string {
	return msg.UserID + "/" + msg.ChannelID
}

func splitCommand(s string) (string, string) {
	name, args, _ := strings.Cut(strings.TrimSpace(s), " ")
	return strings.ToLower(name), strings.TrimSpace(args)
}

func writeList(sb *strings.Builder, lines []string, empty string) {
	if len(lines) == 0 {
		sb.WriteString(empty + "\n")
		return
	}
	for _, l := range lines {
		sb.WriteString(l + "\n")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// splitMessage cuts msg into pieces of at most maxLen runes, preferring to
// cut after a newline in the second half of a piece.
func splitMessage(msg string, maxLen int) []string {
	runes := []rune(msg)
	if len(runes) <= maxLen {
		return []string{msg}
	}
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}
		cut := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}
