package dispatch

import (
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/internal/envelope"
	"github.com/scttfrdmn/agenkit-sub000/internal/transport"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// startHTTP serves the §4.E HTTP/1.1+SSE surface: POST /process for
// unary calls, POST /stream for SSE-framed streaming, and GET /health
// for liveness probes.
func (l *LocalAgent) startHTTP(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/process", l.handleHTTPProcess)
	mux.HandleFunc("/stream", l.handleHTTPStream)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dispatch: listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux}
	l.httpServer = srv
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		_ = srv.Serve(ln)
	}()
	return nil
}

// handleHTTPProcess mirrors http_server.py's handle_process: a decode or
// validation failure before the agent is ever called returns a plain
// non-200 JSON error response (400); a failure raised by the agent
// itself becomes a 500. Both are distinct from handleFrame's byte-stream
// dispatch, which has no HTTP status to report through.
func (l *LocalAgent) handleHTTPProcess(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeHTTPError(w, "unknown", protocolerr.New(protocolerr.MalformedPayload, err.Error(), nil), http.StatusBadRequest)
		return
	}
	env, err := envelope.DecodeBytes(body)
	if err != nil {
		writeHTTPError(w, "unknown", err, http.StatusBadRequest)
		return
	}
	payload, err := env.PayloadMap()
	if err != nil {
		writeHTTPError(w, env.ID, err, http.StatusBadRequest)
		return
	}
	msgData, ok := payload["message"].(map[string]interface{})
	if !ok {
		writeHTTPError(w, env.ID, protocolerr.New(protocolerr.MalformedPayload, "request missing 'message'", nil), http.StatusBadRequest)
		return
	}
	input, err := envelope.DecodeMessage(msgData)
	if err != nil {
		writeHTTPError(w, env.ID, err, http.StatusBadRequest)
		return
	}

	output, err := l.agt.Process(r.Context(), input)
	if err != nil {
		writeHTTPError(w, env.ID, err, http.StatusInternalServerError)
		return
	}

	respEnv := envelope.NewResponse(env.ID, map[string]interface{}{"message": envelope.EncodeMessage(output)})
	respBytes, err := envelope.EncodeBytes(respEnv)
	if err != nil {
		writeHTTPError(w, env.ID, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(respBytes)
}

// handleHTTPStream mirrors http_server.py's handle_stream: everything
// that can fail before the SSE response is prepared (decode, missing
// message, an agent that doesn't implement Streamer) returns a plain
// non-200 JSON error response. Only once the 200 + SSE headers have gone
// out does a failure become an "error" event in the stream itself, via
// streamLoop's errCh branch.
func (l *LocalAgent) handleHTTPStream(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeHTTPError(w, "unknown", protocolerr.New(protocolerr.MalformedPayload, err.Error(), nil), http.StatusBadRequest)
		return
	}
	env, err := envelope.DecodeBytes(body)
	if err != nil {
		writeHTTPError(w, "unknown", err, http.StatusBadRequest)
		return
	}
	payload, err := env.PayloadMap()
	if err != nil {
		writeHTTPError(w, env.ID, err, http.StatusBadRequest)
		return
	}
	msgData, ok := payload["message"].(map[string]interface{})
	if !ok {
		writeHTTPError(w, env.ID, protocolerr.New(protocolerr.MalformedPayload, "request missing 'message'", nil), http.StatusBadRequest)
		return
	}
	input, err := envelope.DecodeMessage(msgData)
	if err != nil {
		writeHTTPError(w, env.ID, err, http.StatusBadRequest)
		return
	}
	streamer, ok := l.agt.(agent.Streamer)
	if !ok {
		writeHTTPError(w, env.ID, protocolerr.New(protocolerr.InvalidMessage, "agent does not support streaming", nil), http.StatusNotImplemented)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(b []byte) error {
		_, err := fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
		return err
	}
	streamLoop(r.Context(), env.ID, streamer, input, send)
}

// writeHTTPError writes err as a JSON error envelope with the given HTTP
// status, for failures that occur before any success response has begun.
func writeHTTPError(w http.ResponseWriter, requestID string, err error, status int) {
	errEnv := toErrorEnvelope(requestID, err)
	b, encErr := envelope.EncodeBytes(errEnv)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr != nil {
		return
	}
	_, _ = w.Write(b)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, transport.MaxMessageSize+1))
}
