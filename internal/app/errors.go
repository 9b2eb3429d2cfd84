package app

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrSubjectExists      = errors.New("subject already exists")
	ErrNoActiveSubject    = errors.New("no active subject")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrNoRelevantMaterial = errors.New("no relevant material found")
	ErrLLMConfig          = errors.New("llm config is invalid")
	ErrInvalidCredential  = errors.New("invalid client credentials")
)
