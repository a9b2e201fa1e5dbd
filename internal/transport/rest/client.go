package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
)

// Client talks to the game/session service over HTTP. Every call carries a
// bounded timeout so a hung request resolves as a transient error instead of
// blocking the engine.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a REST client for the given base URL. A zero timeout
// defaults to 10 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// JoinResult is the response to an initial join.
type JoinResult struct {
	Participant domain.ParticipantIdentity `json:"participant"`
	GameCode    string                     `json:"gameCode"`
	Token       string                     `json:"sessionToken"`
}

// Credential assembles the persistable credential out of a join result.
func (j JoinResult) Credential() domain.SessionCredential {
	return domain.SessionCredential{
		GameCode:      j.GameCode,
		ParticipantID: j.Participant.ID,
		SessionToken:  j.Token,
	}
}

type rejoinWire struct {
	Participant     domain.ParticipantIdentity `json:"participant"`
	GameStatus      string                     `json:"gameStatus"`
	CurrentQuestion json.RawMessage            `json:"currentQuestion,omitempty"`
	AnswerRevealed  bool                       `json:"answerRevealed"`
	AlreadyAnswered bool                       `json:"alreadyAnswered"`
}

// Join enters a game with a fresh identity.
func (c *Client) Join(ctx context.Context, gameCode, displayName string) (JoinResult, error) {
	var result JoinResult
	body := map[string]string{"displayName": displayName}
	err := c.do(ctx, http.MethodPost, "/api/games/"+gameCode+"/join", "", body, &result)
	if err != nil {
		return JoinResult{}, err
	}
	if result.GameCode == "" {
		result.GameCode = gameCode
	}
	return result, nil
}

// Rejoin resumes an existing session from a persisted credential.
func (c *Client) Rejoin(ctx context.Context, cred domain.SessionCredential) (domain.RejoinSnapshot, error) {
	var wire rejoinWire
	err := c.do(ctx, http.MethodPost, "/api/session/rejoin", cred.SessionToken, nil, &wire)
	if err != nil {
		return domain.RejoinSnapshot{}, err
	}

	snap := domain.RejoinSnapshot{
		Participant:     wire.Participant,
		Ended:           wire.GameStatus == "ended",
		Paused:          wire.GameStatus == "paused",
		AnswerRevealed:  wire.AnswerRevealed,
		AlreadyAnswered: wire.AlreadyAnswered,
	}
	if len(wire.CurrentQuestion) > 0 && string(wire.CurrentQuestion) != "null" {
		question, err := domain.DecodeQuestion(wire.CurrentQuestion)
		if err != nil {
			return domain.RejoinSnapshot{}, err
		}
		snap.CurrentQuestion = &question
	}
	return snap, nil
}

// SubmitAnswer sends one answer attempt and returns the server's verdict.
func (c *Client) SubmitAnswer(ctx context.Context, cred domain.SessionCredential, attempt domain.AnswerAttempt) (domain.AnswerVerdict, error) {
	var verdict domain.AnswerVerdict
	err := c.do(ctx, http.MethodPost, "/api/session/answer", cred.SessionToken, attempt, &verdict)
	if err != nil {
		return domain.AnswerVerdict{}, err
	}
	verdict.QuestionID = attempt.QuestionID
	return verdict, nil
}

// FetchAnalytics retrieves the per-participant summary; only meaningful once
// the game ended.
func (c *Client) FetchAnalytics(ctx context.Context, cred domain.SessionCredential) (domain.GameAnalytics, error) {
	var analytics domain.GameAnalytics
	err := c.do(ctx, http.MethodGet, "/api/session/analytics", cred.SessionToken, nil, &analytics)
	if err != nil {
		return domain.GameAnalytics{}, err
	}
	return analytics, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransientError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return mapStatus(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// mapStatus converts HTTP failures into the error taxonomy. Kinds are mapped
// from status codes, never from message text.
func mapStatus(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrCredentialRejected
	case http.StatusNotFound:
		return domain.ErrGameNotFound
	case http.StatusConflict:
		return domain.ErrNameTaken
	case http.StatusForbidden:
		return domain.ErrGameClosed
	case http.StatusGone:
		return domain.ErrDeadlinePassed
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		reason := body.Message
		if reason == "" {
			reason = "rejected by server"
		}
		return &domain.ValidationError{Reason: reason}
	default:
		log.Warn().Int("status", resp.StatusCode).Str("message", body.Message).Msg("unexpected response status")
		return &domain.TransientError{Op: resp.Request.Method + " " + resp.Request.URL.Path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
}
