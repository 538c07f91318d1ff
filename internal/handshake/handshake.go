// Package handshake validates WebSocket upgrade requests and derives the
// Sec-WebSocket-Accept key (RFC 6455 section 4.2).
package handshake

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// GUID is the fixed value appended to the client key before hashing.
const GUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// DefaultVersion is the only protocol version this server speaks.
const DefaultVersion = "13"

// Header names used during the upgrade
const (
	HeaderUpgrade    = "Upgrade"
	HeaderConnection = "Connection"
	HeaderKey        = "Sec-WebSocket-Key"
	HeaderVersion    = "Sec-WebSocket-Version"
	HeaderProtocol   = "Sec-WebSocket-Protocol"
	HeaderAccept     = "Sec-WebSocket-Accept"
)

// Reasons an upgrade request is rejected
var (
	ErrMethodNotAllowed = errors.New("upgrade request method must be GET")
	ErrMissingHeaders   = errors.New("missing Upgrade or Connection header")
	ErrNotWebSocket     = errors.New("Upgrade header is not websocket")
	ErrNoUpgradeToken   = errors.New("Connection header does not contain upgrade")
	ErrMissingKey       = errors.New("missing Sec-WebSocket-Key header")
	ErrBadVersion       = errors.New("unsupported Sec-WebSocket-Version")
)

// Request is the part of an HTTP request the negotiator looks at.
type Request struct {
	Method string
	Header http.Header
}

// FromHTTP extracts a Request from an *http.Request.
func FromHTTP(r *http.Request) Request {
	return Request{Method: r.Method, Header: r.Header}
}

// Result is the outcome of a negotiation. Exactly one of Accept or Reject
// is non-nil.
type Result struct {
	Accept *Accept
	Reject *Reject
}

// Accepted reports whether the upgrade may proceed.
func (r Result) Accepted() bool {
	return r.Accept != nil
}

// Accept holds the headers of the 101 Switching Protocols response.
type Accept struct {
	Header      http.Header
	Subprotocol string
}

// Status is always 101.
func (a *Accept) Status() int {
	return http.StatusSwitchingProtocols
}

// Reject is the HTTP error response sent instead of upgrading.
type Reject struct {
	Status int
	Header http.Header
	Body   string
	Reason error
}

// Negotiator decides whether an upgrade request is acceptable. The zero value
// speaks version 13 and selects no subprotocol.
type Negotiator struct {
	// Version is echoed in Sec-WebSocket-Version and required from the client.
	Version string
	// Subprotocols lists the subprotocols the server accepts. The first one the
	// client offers wins.
	Subprotocols []string
}

// Negotiate validates req and builds the response. The checks run in order
// and the first failure wins.
func (n *Negotiator) Negotiate(req Request) Result {
	version := n.Version
	if version == "" {
		version = DefaultVersion
	}

	if req.Method != http.MethodGet {
		hdr := make(http.Header)
		hdr.Set("Allow", http.MethodGet)
		return reject(http.StatusMethodNotAllowed, ErrMethodNotAllowed, hdr)
	}

	upgrade, hasUpgrade := single(req.Header, HeaderUpgrade)
	_, hasConnection := single(req.Header, HeaderConnection)
	if !hasUpgrade || !hasConnection {
		return reject(http.StatusBadRequest, ErrMissingHeaders, nil)
	}
	if !strings.EqualFold(strings.TrimSpace(upgrade), "websocket") {
		return reject(http.StatusBadRequest, ErrNotWebSocket, nil)
	}
	if !HeaderContainsToken(req.Header, HeaderConnection, "upgrade") {
		return reject(http.StatusBadRequest, ErrNoUpgradeToken, nil)
	}

	key := strings.TrimSpace(req.Header.Get(HeaderKey))
	if key == "" {
		return reject(http.StatusBadRequest, ErrMissingKey, nil)
	}
	if strings.TrimSpace(req.Header.Get(HeaderVersion)) != version {
		hdr := make(http.Header)
		hdr.Set(HeaderVersion, version)
		return reject(http.StatusUpgradeRequired, ErrBadVersion, hdr)
	}

	hdr := make(http.Header)
	hdr.Set(HeaderUpgrade, "websocket")
	hdr.Set(HeaderConnection, "Upgrade")
	hdr.Set(HeaderAccept, AcceptKey(key))
	hdr.Set(HeaderVersion, version)

	proto := n.selectSubprotocol(req.Header)
	if proto != "" {
		hdr.Set(HeaderProtocol, proto)
	}

	return Result{Accept: &Accept{Header: hdr, Subprotocol: proto}}
}

// AcceptKey computes base64(SHA1(key + GUID)).
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(GUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Subprotocols returns the client-offered subprotocols in order.
func Subprotocols(h http.Header) []string {
	var out []string
	for _, v := range h.Values(HeaderProtocol) {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// HeaderContainsToken checks if the comma-separated header contains token (case-insensitive).
func HeaderContainsToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

func (n *Negotiator) selectSubprotocol(h http.Header) string {
	for _, got := range Subprotocols(h) {
		if slices.Contains(n.Subprotocols, got) {
			return got
		}
	}
	return ""
}

func single(h http.Header, name string) (string, bool) {
	vals := h.Values(name)
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func reject(status int, reason error, hdr http.Header) Result {
	if hdr == nil {
		hdr = make(http.Header)
	}
	body := http.StatusText(status) + ": " + reason.Error() + "\n"
	hdr.Set("Content-Type", "text/plain; charset=utf-8")
	hdr.Set("Content-Length", strconv.Itoa(len(body)))
	hdr.Set(HeaderConnection, "close")
	return Result{Reject: &Reject{
		Status: status,
		Header: hdr,
		Body:   body,
		Reason: reason,
	}}
}
