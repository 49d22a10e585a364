package capture

import (
	"bytes"
	"compress/gzip"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/elazarl/goproxy"
	"github.com/google/uuid"

	"github.com/chatlens-ai/chatlens/internal/config"
	"github.com/chatlens-ai/chatlens/internal/trace"
)

// Recorder is a forward proxy with HTTPS MITM that converts observed LLM API
// calls into traces.
type Recorder struct {
	cfg      *config.ProjectConfig
	store    trace.Store
	redactor *Redactor
	session  *Session
	proxy    *goproxy.ProxyHttpServer
	server   *http.Server
	ca       *CA
	matcher  *hostMatcher

	mu    sync.Mutex
	count int
}

func NewRecorder(cfg *config.ProjectConfig, store trace.Store, redactor *Redactor, session *Session) (*Recorder, error) {
	caPath := cfg.Capture.Proxy.CAPath
	if !CAExists(caPath) {
		return nil, fmt.Errorf("CA not found at %s, run 'chatlens init' first", caPath)
	}
	ca, err := LoadCA(caPath)
	if err != nil {
		return nil, fmt.Errorf("load CA: %w", err)
	}

	r := &Recorder{
		cfg:      cfg,
		store:    store,
		redactor: redactor,
		session:  session,
		ca:       ca,
		matcher:  newHostMatcher(cfg.Capture.Proxy.AllowHosts),
	}
	r.setupProxy()
	return r, nil
}

func (r *Recorder) setupProxy() {
	proxy := goproxy.NewProxyHttpServer()
	proxy.Verbose = false

	goproxy.GoproxyCa = tls.Certificate{
		Certificate: [][]byte{r.ca.Cert().Raw},
		PrivateKey:  r.ca.Key(),
		Leaf:        r.ca.Cert(),
	}

	// MITM only allowlisted hosts, tunnel everything else untouched. The
	// CONNECT host carries a port.
	proxy.OnRequest().HandleConnect(goproxy.FuncHttpsHandler(func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
		if r.matcher.isAllowed(stripPort(host)) {
			return goproxy.MitmConnect, host
		}
		return goproxy.OkConnect, host
	}))

	proxy.OnRequest().DoFunc(r.handleRequest)
	proxy.OnResponse().DoFunc(r.handleResponse)

	proxy.Tr = &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	r.proxy = proxy
}

func (r *Recorder) handleRequest(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	host := req.URL.Hostname()
	if host == "" {
		host = req.Host
	}
	if !r.matcher.isAllowed(host) {
		r.debugf("skipping %s (not in allowed hosts)", host)
		return req, nil
	}
	r.debugf("capturing %s %s", req.Method, req.URL.String())

	call := &capturedCall{
		traceID:   uuid.NewString(),
		startTime: time.Now(),
		service:   r.matcher.service(host),
		path:      req.URL.Path,
	}
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		call.requestBody = body
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	ctx.UserData = call
	return req, nil
}

func (r *Recorder) handleResponse(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
	call, ok := ctx.UserData.(*capturedCall)
	if !ok || call == nil || resp == nil {
		return resp
	}

	if resp.Body != nil {
		body, err := readBodyWithGzip(resp.Body, resp.Header)
		if err == nil {
			call.responseBody = body
			resp.Header.Del("Content-Encoding")
			resp.Body = io.NopCloser(bytes.NewReader(body))
		}
	}

	tr := r.buildTrace(call, time.Now())
	r.redactor.Apply(&tr)

	if err := r.store.Append(tr); err != nil {
		r.debugf("append trace: %v", err)
		return resp
	}
	if r.session != nil {
		r.session.AddTrace(tr.TraceID)
	}
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
	r.debugf("trace recorded: %s (%s)", tr.TraceID, call.service)

	return resp
}

// buildTrace converts one captured request/response pair into an
// llm-invocation trace in the session's conversation.
func (r *Recorder) buildTrace(c *capturedCall, endedAt time.Time) trace.Trace {
	req := parseRequestBody(c.requestBody)
	resp := parseResponseBody(c.responseBody)

	attrs := map[string]any{
		trace.AttrTraceType:   trace.TypeLLMInvocation,
		trace.AttrPeerService: c.service,
	}
	if r.session != nil {
		attrs[trace.AttrConversationID] = r.session.ConversationID
	}
	if req.ModelID != "" {
		attrs[trace.AttrLLMRequestModelID] = req.ModelID
	}
	if req.System != "" {
		attrs[trace.AttrLLMRequestSystem] = req.System
	}
	if len(req.Messages) > 0 {
		attrs[trace.AttrLLMRequestMessages] = req.Messages
	}
	if req.Inference != nil {
		attrs[trace.AttrLLMRequestInferenceConfig] = req.Inference
	}
	if req.UserInput != "" {
		attrs[trace.AttrUserInput] = req.UserInput
	}
	if resp.Output != nil {
		attrs[trace.AttrLLMResponseOutput] = resp.Output
	}
	if resp.Text != "" {
		attrs[trace.AttrAgentResponse] = resp.Text
	}
	if resp.StopReason != "" {
		attrs[trace.AttrLLMResponseStopReason] = resp.StopReason
	}
	if resp.Usage != nil {
		attrs[trace.AttrLLMResponseUsage] = resp.Usage
	}

	return trace.Trace{
		TraceID:    c.traceID,
		SpanID:     uuid.NewString(),
		SpanName:   strings.TrimPrefix(c.path, "/"),
		SpanKind:   "CLIENT",
		StartedAt:  c.startTime.UTC(),
		EndedAt:    &endedAt,
		Attributes: attrs,
	}
}

// Start serves the proxy in the background.
func (r *Recorder) Start() error {
	addr := r.cfg.Capture.Proxy.Listen
	if addr == "" {
		addr = "127.0.0.1:4141"
	}
	r.server = &http.Server{Addr: addr, Handler: r.proxy}
	go func() {
		_ = r.server.ListenAndServe()
	}()
	return nil
}

func (r *Recorder) Stop() error {
	if r.server == nil {
		return nil
	}
	return r.server.Close()
}

func (r *Recorder) TraceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Recorder) Session() *Session {
	return r.session
}

func (r *Recorder) debugf(format string, args ...any) {
	if r.cfg.Capture.Proxy.Debug {
		fmt.Printf("[debug] "+format+"\n", args...)
	}
}

type capturedCall struct {
	traceID      string
	startTime    time.Time
	service      string
	path         string
	requestBody  []byte
	responseBody []byte
}

type hostMatcher struct {
	allowHosts map[string]string
}

func newHostMatcher(hosts []string) *hostMatcher {
	m := &hostMatcher{allowHosts: make(map[string]string)}
	for _, host := range hosts {
		m.allowHosts[strings.ToLower(host)] = deriveService(host)
	}
	return m
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func (m *hostMatcher) isAllowed(host string) bool {
	_, ok := m.allowHosts[strings.ToLower(host)]
	return ok
}

func (m *hostMatcher) service(host string) string {
	return m.allowHosts[strings.ToLower(host)]
}

func deriveService(host string) string {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, "azure") && strings.Contains(host, "openai"):
		return "azure_openai"
	case strings.Contains(host, "openai"):
		return "openai"
	case strings.Contains(host, "anthropic"):
		return "anthropic"
	case strings.Contains(host, "bedrock"), strings.Contains(host, "amazonaws"):
		return "bedrock"
	}
	if parts := strings.Split(host, "."); len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "unknown"
}

func readBodyWithGzip(body io.ReadCloser, headers http.Header) ([]byte, error) {
	defer body.Close()
	var reader io.Reader = body
	if strings.EqualFold(headers.Get("Content-Encoding"), "gzip") {
		gr, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		reader = gr
	}
	return io.ReadAll(reader)
}
