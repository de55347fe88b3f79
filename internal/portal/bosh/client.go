// Package bosh pre-binds XMPP sessions over BOSH (XEP-0124 / XEP-0206) so
// browser clients can attach with a jid/sid/rid triple.
package bosh

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
)

var ErrAuthFailed = errors.New("bosh: authentication failed")

// Session is everything a client needs to attach to the pre-bound stream.
type Session struct {
	JID string `json:"jid"`
	SID string `json:"sid"`
	RID int64  `json:"rid"`
}

type Client struct {
	serviceURL string
	httpClient *http.Client
}

func NewClient(serviceURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{serviceURL: serviceURL, httpClient: httpClient}
}

type body struct {
	XMLName xml.Name `xml:"body"`
	SID     string   `xml:"sid,attr"`
	Inner   string   `xml:",innerxml"`
}

// Prebind opens a BOSH session, authenticates via SASL PLAIN and binds the
// given resource. The returned RID is the next request id the attaching
// client must use.
func (c *Client) Prebind(ctx context.Context, jid, password string) (Session, error) {
	bare, resource, domain, err := splitJID(jid)
	if err != nil {
		return Session{}, err
	}

	rid := rand.Int64N(1 << 30)

	// 1. session creation request
	res, err := c.post(ctx, fmt.Sprintf(
		`<body content='text/xml; charset=utf-8' hold='1' wait='60' rid='%d' to='%s' xml:lang='en' xmpp:version='1.0' xmlns='http://jabber.org/protocol/httpbind' xmlns:xmpp='urn:xmpp:xbosh'/>`,
		rid, domain))
	if err != nil {
		return Session{}, err
	}
	sid := res.SID
	if sid == "" {
		return Session{}, errors.New("bosh: server did not return a session id")
	}

	// 2. SASL PLAIN
	user := bare
	if at := strings.Index(bare, "@"); at >= 0 {
		user = bare[:at]
	}
	creds := base64.StdEncoding.EncodeToString([]byte("\x00" + user + "\x00" + password))
	rid++
	res, err = c.post(ctx, fmt.Sprintf(
		`<body rid='%d' sid='%s' xmlns='http://jabber.org/protocol/httpbind'><auth xmlns='urn:ietf:params:xml:ns:xmpp-sasl' mechanism='PLAIN'>%s</auth></body>`,
		rid, sid, creds))
	if err != nil {
		return Session{}, err
	}
	if !strings.Contains(res.Inner, "success") {
		return Session{}, ErrAuthFailed
	}

	// 3. stream restart
	rid++
	if _, err = c.post(ctx, fmt.Sprintf(
		`<body rid='%d' sid='%s' to='%s' xmpp:restart='true' xml:lang='en' xmlns='http://jabber.org/protocol/httpbind' xmlns:xmpp='urn:xmpp:xbosh'/>`,
		rid, sid, domain)); err != nil {
		return Session{}, err
	}

	// 4. resource binding
	rid++
	res, err = c.post(ctx, fmt.Sprintf(
		`<body rid='%d' sid='%s' xmlns='http://jabber.org/protocol/httpbind'><iq type='set' id='bind_1' xmlns='jabber:client'><bind xmlns='urn:ietf:params:xml:ns:xmpp-bind'><resource>%s</resource></bind></iq></body>`,
		rid, sid, resource))
	if err != nil {
		return Session{}, err
	}

	boundJID := jid
	if j := extractBoundJID(res.Inner); j != "" {
		boundJID = j
	}

	return Session{JID: boundJID, SID: sid, RID: rid + 1}, nil
}

func (c *Client) post(ctx context.Context, payload string) (body, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL,
		bytes.NewBufferString(payload))
	if err != nil {
		return body{}, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return body{}, fmt.Errorf("bosh: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return body{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return body{}, fmt.Errorf("bosh: unexpected status %d", resp.StatusCode)
	}

	var b body
	if err := xml.Unmarshal(raw, &b); err != nil {
		return body{}, fmt.Errorf("bosh: parse response: %w", err)
	}
	return b, nil
}

func splitJID(jid string) (bare, resource, domain string, err error) {
	bare = jid
	if slash := strings.Index(jid, "/"); slash >= 0 {
		bare = jid[:slash]
		resource = jid[slash+1:]
	}
	at := strings.Index(bare, "@")
	if at < 0 || at == len(bare)-1 {
		return "", "", "", fmt.Errorf("bosh: malformed jid %q", jid)
	}
	domain = bare[at+1:]
	return bare, resource, domain, nil
}

type bindResult struct {
	JID string `xml:"bind>jid"`
}

func extractBoundJID(inner string) string {
	var iq bindResult
	dec := xml.NewDecoder(strings.NewReader(inner))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "iq" {
			if err := dec.DecodeElement(&iq, &se); err != nil {
				return ""
			}
			return iq.JID
		}
	}
}
