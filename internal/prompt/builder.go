package prompt

import (
	"fmt"
	"strings"

	"studybuddy/internal/ai"
	"studybuddy/internal/retrieval"
)

// Request is everything the builder needs besides the bundle.
type Request struct {
	Kind  retrieval.RequestKind
	Style string
	// Topic is the lesson topic, the question, or the optional test focus.
	Topic string
	// Game personalizes styles that use one; "" means the default game.
	Game string
	// Questions is the number of test questions to generate.
	Questions int
}

type Builder struct {
	catalog     *Catalog
	defaultGame string
}

func NewBuilder(catalog *Catalog, defaultGame string) *Builder {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if defaultGame == "" {
		defaultGame = "popular video games"
	}
	return &Builder{catalog: catalog, defaultGame: defaultGame}
}

func (b *Builder) Catalog() *Catalog { return b.catalog }

// Build renders the chat messages for req. Bundle items keep their order:
// question bank entries first, then chunks by rank.
func (b *Builder) Build(req Request, bundle *retrieval.Bundle) ([]ai.ChatMessage, error) {
	switch req.Kind {
	case retrieval.RequestLesson:
		return b.lesson(req, bundle)
	case retrieval.RequestAsk:
		return b.ask(req, bundle)
	case retrieval.RequestTest:
		return b.test(req, bundle), nil
	}
	return nil, fmt.Errorf("unknown request kind %q", req.Kind)
}

func (b *Builder) lesson(req Request, bundle *retrieval.Bundle) ([]ai.ChatMessage, error) {
	style, err := b.catalog.Lookup(req.Style)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are teaching a mini-lesson on: %s\n\n", req.Topic)
	b.writeStyle(&sb, style, req.Game)
	writeMaterial(&sb, bundle)
	sb.WriteString("\nCreate a focused mini-lesson that:\n")
	sb.WriteString("1. Highlights concepts that appear in practice tests\n")
	sb.WriteString("2. Explains key concepts in the requested style\n")
	sb.WriteString("3. Provides memorable examples or mnemonics\n")
	sb.WriteString("4. Keeps it concise (5-7 key points max)\n")
	writeCitationRule(&sb, bundle)

	return []ai.ChatMessage{
		{Role: "system", Content: systemPrompt("You are an engaging study coach who makes learning fun and effective.", bundle)},
		{Role: "user", Content: sb.String()},
	}, nil
}

func (b *Builder) ask(req Request, bundle *retrieval.Bundle) ([]ai.ChatMessage, error) {
	style, err := b.catalog.Lookup(req.Style)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Answer this question: %s\n\n", req.Topic)
	b.writeStyle(&sb, style, req.Game)
	writeMaterial(&sb, bundle)
	sb.WriteString("\nProvide a helpful answer that is relevant to the student's course and likely test questions.\n")
	writeCitationRule(&sb, bundle)

	return []ai.ChatMessage{
		{Role: "system", Content: systemPrompt("You are a helpful study assistant.", bundle)},
		{Role: "user", Content: sb.String()},
	}, nil
}

func (b *Builder) test(req Request, bundle *retrieval.Bundle) []ai.ChatMessage {
	n := req.Questions
	if n <= 0 {
		n = 5
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are creating a practice test with %d questions.\n", n)
	if req.Topic != "" {
		fmt.Fprintf(&sb, "Focus on: %s\n", req.Topic)
	}
	sb.WriteString("\nInstructions:\n")
	sb.WriteString("1. Base your questions on the material below\n")
	sb.WriteString("2. Create variations of existing questions that test the same concepts without copying them\n")
	sb.WriteString("3. Include the question bank entries, reworded if needed\n")
	sb.WriteString("4. Use the question types found in the material (multiple choice, short answer, ...)\n")
	sb.WriteString("5. Put an answer key at the end\n\n")
	writeMaterial(&sb, bundle)
	writeCitationRule(&sb, bundle)

	return []ai.ChatMessage{
		{Role: "system", Content: systemPrompt("You are a helpful study assistant creating practice test variations from existing materials.", bundle)},
		{Role: "user", Content: sb.String()},
	}
}

func (b *Builder) writeStyle(sb *strings.Builder, style Style, game string) {
	fmt.Fprintf(sb, "Style: %s\n", style.Instruction)
	if style.UsesGame {
		if game == "" {
			game = b.defaultGame
		}
		fmt.Fprintf(sb, "Create mnemonics and memory tricks, if possible, using references from %s. "+
			"Use characters, items, mechanics and concepts from it to make memorable associations. "+
			"Otherwise, use another memorable mnemonic.\n", game)
	}
	sb.WriteString("\n")
}

// writeMaterial renders the bundle. Question bank entries become a bullet
// list; every chunk is a block headed by its citation label.
func writeMaterial(sb *strings.Builder, bundle *retrieval.Bundle) {
	if bundle.Empty() {
		sb.WriteString("No course material matched this request. Answer from general knowledge and say " +
			"clearly at the start that the answer is not based on the uploaded material.\n")
		return
	}
	if qs := bundle.Questions(); len(qs) > 0 {
		sb.WriteString("Question bank:\n")
		for _, q := range qs {
			fmt.Fprintf(sb, "- %s: %s\n", q.Label, strings.ReplaceAll(q.Text, "\n", " "))
		}
		sb.WriteString("\n")
	}
	if chunks := bundle.Chunks(); len(chunks) > 0 {
		sb.WriteString("Course material (with sources):\n\n")
		for _, c := range chunks {
			fmt.Fprintf(sb, "[Source: %s]\n%s\n\n", c.Label, c.Text)
		}
	}
}

func writeCitationRule(sb *strings.Builder, bundle *retrieval.Bundle) {
	if bundle.Empty() {
		return
	}
	sb.WriteString("\nALWAYS cite where information comes from using [Source: <source>] with a source " +
		"exactly as written above. Do not cite anything that is not listed.\n")
}

func systemPrompt(role string, bundle *retrieval.Bundle) string {
	if bundle.Empty() {
		return role
	}
	return role + " Always cite sources with [Source: <source>]."
}
