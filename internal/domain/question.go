package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QuestionType discriminates the typed payload carried by a question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTrueFalse      QuestionType = "true-false"
	QuestionShortAnswer    QuestionType = "short-answer"
	QuestionFillBlank      QuestionType = "fill-blank"
	QuestionCode           QuestionType = "code"
	QuestionImage          QuestionType = "image"
	QuestionCrossword      QuestionType = "crossword"
)

// MaxCodeAnswerBytes bounds code submissions; larger payloads are rejected
// locally before any network call.
const MaxCodeAnswerBytes = 64 * 1024

// ActiveQuestion is the single question currently in play. Exactly one
// exists at a time; it is replaced when the next question starts.
type ActiveQuestion struct {
	ID               string
	Order            int
	Text             string
	Type             QuestionType
	Payload          QuestionPayload
	TimeLimitSeconds int
	Marks            int
	HintText         string
	HintPenalty      int
	Deadline         time.Time
}

// QuestionPayload is the per-type variant of a question. Each variant
// carries only the fields relevant to its type.
type QuestionPayload interface {
	questionPayload()
}

// ChoicePayload backs multiple-choice and true/false questions.
type ChoicePayload struct {
	Options []ChoiceOption `json:"options"`
}

// ChoiceOption is one offered answer.
type ChoiceOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// TextPayload backs short-answer and fill-blank questions.
type TextPayload struct {
	MaxLength int `json:"maxLength,omitempty"`
	Blanks    int `json:"blanks,omitempty"`
}

// CodePayload backs code questions.
type CodePayload struct {
	Template  string   `json:"template,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// ImagePayload backs image questions.
type ImagePayload struct {
	ImageURL string `json:"imageUrl"`
}

// CrosswordPayload backs crossword questions.
type CrosswordPayload struct {
	Rows  int             `json:"rows"`
	Cols  int             `json:"cols"`
	Clues []CrosswordClue `json:"clues"`
}

// CrosswordClue is one entry of a crossword grid.
type CrosswordClue struct {
	Number    int    `json:"number"`
	Direction string `json:"direction"` // "across" or "down"
	Clue      string `json:"clue"`
	Length    int    `json:"length"`
}

func (ChoicePayload) questionPayload()    {}
func (TextPayload) questionPayload()      {}
func (CodePayload) questionPayload()      {}
func (ImagePayload) questionPayload()     {}
func (CrosswordPayload) questionPayload() {}

// questionWire is the flat JSON shape the server sends; DecodeQuestion
// narrows it into the tagged union.
type questionWire struct {
	ID                string          `json:"id"`
	Order             int             `json:"order"`
	Text              string          `json:"text"`
	Type              QuestionType    `json:"type"`
	Payload           json.RawMessage `json:"payload"`
	TimeLimitSeconds  int             `json:"timeLimitSeconds"`
	Marks             int             `json:"marks"`
	HintText          string          `json:"hintText,omitempty"`
	HintPenalty       int             `json:"hintPenalty,omitempty"`
	DeadlineUnixMilli int64           `json:"deadline"`
}

// DecodeQuestion parses a question pushed by the server, selecting the
// payload variant from the question type.
func DecodeQuestion(raw []byte) (ActiveQuestion, error) {
	var wire questionWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ActiveQuestion{}, fmt.Errorf("decode question: %w", err)
	}
	if wire.ID == "" {
		return ActiveQuestion{}, fmt.Errorf("decode question: missing id")
	}

	q := ActiveQuestion{
		ID:               wire.ID,
		Order:            wire.Order,
		Text:             wire.Text,
		Type:             wire.Type,
		TimeLimitSeconds: wire.TimeLimitSeconds,
		Marks:            wire.Marks,
		HintText:         wire.HintText,
		HintPenalty:      wire.HintPenalty,
		Deadline:         time.UnixMilli(wire.DeadlineUnixMilli),
	}

	payload, err := decodePayload(wire.Type, wire.Payload)
	if err != nil {
		return ActiveQuestion{}, err
	}
	q.Payload = payload
	return q, nil
}

func decodePayload(t QuestionType, raw json.RawMessage) (QuestionPayload, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse:
		var p ChoicePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return p, nil
	case QuestionShortAnswer, QuestionFillBlank:
		var p TextPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return p, nil
	case QuestionCode:
		var p CodePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode code payload: %w", err)
		}
		return p, nil
	case QuestionImage:
		var p ImagePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode image payload: %w", err)
		}
		return p, nil
	case QuestionCrossword:
		var p CrosswordPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode crossword payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuestionType, t)
	}
}

// ValidateAttempt checks an attempt's shape against the question type.
// Auto-submitted attempts skip emptiness checks: the server accepts an empty
// answer at timeout and scores it zero.
func ValidateAttempt(q ActiveQuestion, attempt AnswerAttempt) error {
	if attempt.QuestionID != q.ID {
		return &ValidationError{Reason: "attempt targets a different question"}
	}
	if attempt.AutoSubmitted {
		return nil
	}

	switch payload := q.Payload.(type) {
	case ChoicePayload:
		for _, opt := range payload.Options {
			if opt.ID == attempt.RawAnswer {
				return nil
			}
		}
		return &ValidationError{Reason: "selected option is not one of the offered choices"}
	case TextPayload:
		answer := strings.TrimSpace(attempt.RawAnswer)
		if answer == "" {
			return &ValidationError{Reason: "answer must not be empty"}
		}
		if payload.MaxLength > 0 && len(answer) > payload.MaxLength {
			return &ValidationError{Reason: "answer exceeds the maximum length"}
		}
		return nil
	case CodePayload:
		if strings.TrimSpace(attempt.RawAnswer) == "" {
			return &ValidationError{Reason: "code submission must not be empty"}
		}
		if len(attempt.RawAnswer) > MaxCodeAnswerBytes {
			return &ValidationError{Reason: "code submission exceeds the maximum size"}
		}
		if len(payload.Languages) > 0 && attempt.LanguageTag != "" {
			for _, lang := range payload.Languages {
				if lang == attempt.LanguageTag {
					return nil
				}
			}
			return &ValidationError{Reason: "language is not offered for this question"}
		}
		return nil
	case ImagePayload:
		if strings.TrimSpace(attempt.RawAnswer) == "" {
			return &ValidationError{Reason: "answer must not be empty"}
		}
		return nil
	case CrosswordPayload:
		if strings.TrimSpace(attempt.RawAnswer) == "" {
			return &ValidationError{Reason: "crossword submission must not be empty"}
		}
		return nil
	default:
		return &ValidationError{Reason: "question has no payload"}
	}
}
