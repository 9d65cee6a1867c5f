package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"willows-assistant/internal/usecase"
)

const troubleText = "I'm having trouble right now. Please call us at +44 300 131 9797 or email reception@willowsdentalgroup.co.uk for assistance."

type stubUseCase struct {
	out        usecase.ReplyOutput
	err        error
	in         usecase.ReplyInput
	calls      int
	absorbed   []error
	absorbText string
}

func (s *stubUseCase) Reply(_ context.Context, in usecase.ReplyInput) (usecase.ReplyOutput, error) {
	s.calls++
	s.in = in
	return s.out, s.err
}

func (s *stubUseCase) Absorb(_ context.Context, err error) usecase.ReplyOutput {
	s.absorbed = append(s.absorbed, err)
	text := s.absorbText
	if text == "" {
		text = troubleText
	}
	return usecase.ReplyOutput{Response: text, Outcome: usecase.ErrorUpstream}
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       ChatPath,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func newTestHandler(t *testing.T, uc ReplyUseCase) *Handler {
	t.Helper()
	h, err := NewHandler(uc, nil)
	require.NoError(t, err)
	return h
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil, nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	uc := &stubUseCase{out: usecase.ReplyOutput{Response: "Mon–Fri 9–6."}}
	h := newTestHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"message":"What are your opening hours?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.ReplyInput{Message: "What are your opening hours?"}, uc.in)
	require.Equal(t, "Mon–Fri 9–6.", parseBody[chatResponse](t, resp.Body).Response)
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	require.Equal(t, "application/json", resp.Headers["Content-Type"])
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_Base64Body(t *testing.T) {
	uc := &stubUseCase{out: usecase.ReplyOutput{Response: "ok"}}
	h := newTestHandler(t, uc)

	event := makeEvent(base64.StdEncoding.EncodeToString([]byte(`{"message":"hi"}`)))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "hi", uc.in.Message)

	event = makeEvent("%%%not-base64")
	event.IsBase64Encoded = true
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, troubleText, parseBody[chatResponse](t, resp.Body).Response)
	require.Equal(t, 1, uc.calls)
}

func TestHandle_MissingMessage(t *testing.T) {
	bodies := []string{
		`{}`, `{"message":""}`, `{"message":null}`, `{"text":"hi"}`,
		`{"Message":"hi"}`, `{"MESSAGE":"hi"}`,
		`{"message":0}`, `{"message":-0.0}`, `{"message":false}`, `{"message":[]}`, `{"message":{}}`,
	}
	for _, body := range bodies {
		uc := &stubUseCase{}
		h := newTestHandler(t, uc)

		resp, err := h.Handle(context.Background(), makeEvent(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		require.Equal(t, "Message is required", parseBody[errorResponse](t, resp.Body).Error)
		require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
		require.Zero(t, uc.calls)
	}
}

func TestHandle_MalformedBodyIsAbsorbed(t *testing.T) {
	bodies := []string{
		`not-json`, ``, `null`, `[]`, `"hi"`, `{"message":"hi"`,
		`{"message":5}`, `{"message":true}`, `{"message":["hi"]}`, `{"message":{"text":"hi"}}`,
	}
	for _, body := range bodies {
		uc := &stubUseCase{}
		h := newTestHandler(t, uc)

		resp, err := h.Handle(context.Background(), makeEvent(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		require.Equal(t, troubleText, parseBody[chatResponse](t, resp.Body).Response, body)
		require.Zero(t, uc.calls)
		require.Len(t, uc.absorbed, 1)

		var ucErr *usecase.Error
		require.ErrorAs(t, uc.absorbed[0], &ucErr)
		require.Equal(t, usecase.ErrorMalformedRequest, ucErr.Code)
	}
}

func TestHandle_MessageKeyIsExact(t *testing.T) {
	uc := &stubUseCase{out: usecase.ReplyOutput{Response: "ok"}}
	h := newTestHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"Message":"ignored","message":"  hi  "}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "  hi  ", uc.in.Message)
}

func TestHandle_UseCaseErrors(t *testing.T) {
	uc := &stubUseCase{err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}}
	resp, err := newTestHandler(t, uc).Handle(context.Background(), makeEvent(`{"message":"x"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	uc = &stubUseCase{err: errors.New("boom")}
	resp, err = newTestHandler(t, uc).Handle(context.Background(), makeEvent(`{"message":"x"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, troubleText, parseBody[chatResponse](t, resp.Body).Response)
}

func TestHandle_Preflight(t *testing.T) {
	h := newTestHandler(t, &stubUseCase{})
	for _, path := range []string{ChatPath, "/anything"} {
		resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodOptions, Path: path})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Empty(t, resp.Body)
		require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
		require.Equal(t, "POST, GET, OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
		require.Equal(t, "Content-Type", resp.Headers["Access-Control-Allow-Headers"])
	}
}

func TestHandle_NotFound(t *testing.T) {
	cases := []events.APIGatewayProxyRequest{
		{HTTPMethod: http.MethodGet, Path: ChatPath},
		{HTTPMethod: http.MethodPost, Path: "/api/other"},
		{HTTPMethod: http.MethodGet, Path: "/index.html"},
	}
	for _, event := range cases {
		uc := &stubUseCase{}
		resp, err := newTestHandler(t, uc).Handle(context.Background(), event)
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Empty(t, resp.Body)
		require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
		require.Zero(t, uc.calls)
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := newTestHandler(t, &stubUseCase{out: usecase.ReplyOutput{Response: "ok"}})

	event := makeEvent(`{"message":"hi"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_GeneratesCorrelationID(t *testing.T) {
	orig := newCorrelationID
	newCorrelationID = func() string { return "generated-id" }
	t.Cleanup(func() { newCorrelationID = orig })

	resp, err := newTestHandler(t, &stubUseCase{}).Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	require.Equal(t, "generated-id", resp.Headers["X-Correlation-Id"])
}
