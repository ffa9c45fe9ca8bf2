package ldap

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/internal/logger"
	"github.com/mextdomen/mextdomen/pkg/directory"
	"github.com/mextdomen/mextdomen/pkg/models"
)

// LDAP application tag numbers.
const (
	appBindRequest       byte = 0
	appBindResponse      byte = 1
	appUnbindRequest     byte = 2
	appSearchRequest     byte = 3
	appSearchResultEntry byte = 4
	appSearchResultDone  byte = 5
)

// LDAP result codes.
const (
	resultSuccess                uint32 = 0
	resultProtocolError          uint32 = 2
	resultUnavailable            uint32 = 12
	resultInvalidAttributeSyntax uint32 = 21
	resultInvalidCredentials     uint32 = 49
)

// conn handles one client connection. Requests are processed sequentially
// in wire order.
type conn struct {
	socket  net.Conn
	reader  *bufio.Reader
	service *directory.Service
	config  Config
	metrics MetricsRecorder

	// boundUser is set after a successful authenticated bind.
	boundUser *uuid.UUID
}

func newConn(socket net.Conn, service *directory.Service, config Config, metrics MetricsRecorder) *conn {
	return &conn{
		socket:  socket,
		reader:  bufio.NewReader(socket),
		service: service,
		config:  config,
		metrics: metrics,
	}
}

// serve reads LDAP messages until the client disconnects, sends an unbind,
// or ctx is cancelled.
func (c *conn) serve(ctx context.Context) {
	defer func() {
		if err := c.socket.Close(); err != nil {
			logger.Debug("Error closing LDAP socket", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if c.config.ReadTimeout > 0 {
			_ = c.socket.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		message, err := ReadValue(c.reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("LDAP read failed", "address", c.socket.RemoteAddr(), "error", err)
			}
			return
		}

		if !c.handleMessage(message) {
			return
		}
	}
}

// handleMessage dispatches one LDAPMessage. It returns false when the
// connection should close.
func (c *conn) handleMessage(message Value) bool {
	if message.Kind != KindSequence || len(message.Items) < 2 || message.Items[0].Kind != KindInteger {
		c.writeSearchDone(0, resultProtocolError)
		return true
	}
	msgID := message.Items[0].Int

	op := message.Items[1]
	if op.Kind != KindTagged || !op.IsApplication() {
		c.writeSearchDone(msgID, resultProtocolError)
		return true
	}

	switch op.TagNumber() {
	case appBindRequest:
		c.handleBind(msgID, op.Items)
		return true
	case appUnbindRequest:
		return false
	case appSearchRequest:
		c.handleSearch(msgID, op.Items)
		return true
	default:
		c.writeSearchDone(msgID, resultUnavailable)
		return true
	}
}

// handleBind processes a simple bind. A bind with DN and password verifies
// the credentials against the directory; an empty bind is accepted only
// when anonymous access is configured.
func (c *conn) handleBind(msgID int64, items []Value) {
	var name, password string
	if len(items) >= 2 && items[1].Kind == KindOctetString {
		name = items[1].String()
	}
	if len(items) >= 3 && items[2].Kind == KindTagged && !items[2].Constructed() && items[2].TagNumber() == 0 {
		password = string(items[2].Bytes)
	}

	code := c.verifyBind(name, password)
	if c.metrics != nil {
		c.metrics.RecordBind(code == resultSuccess)
	}

	c.writeMessage(msgID, Application(appBindResponse,
		Enum(code),
		Str(""),
		Str(""),
	))
}

func (c *conn) verifyBind(name, password string) uint32 {
	if name == "" && password == "" {
		if c.config.AllowAnonymous {
			return resultSuccess
		}
		return resultInvalidCredentials
	}

	username := dnLeadingValue(name)
	user, err := c.service.FindUserByUsername(username)
	if err != nil {
		logger.Warn("LDAP bind lookup failed", "username", username, "error", err)
		return resultUnavailable
	}
	if user == nil || !user.Enabled {
		return resultInvalidCredentials
	}

	ok, err := user.PasswordHash.Verify(password)
	if err != nil || !ok {
		_ = c.service.RecordLogin(user.ID, false)
		return resultInvalidCredentials
	}

	_ = c.service.RecordLogin(user.ID, true)
	c.boundUser = &user.ID
	return resultSuccess
}

// handleSearch streams every user matching the request filter as a
// searchResEntry, then a searchResDone. The filter travels as its textual
// form in the fifth element of the request.
func (c *conn) handleSearch(msgID int64, items []Value) {
	base := ""
	if len(items) >= 1 && items[0].Kind == KindOctetString {
		base = items[0].String()
	}
	var scope uint32
	if len(items) >= 2 && items[1].Kind == KindEnumerated {
		scope = items[1].Enum
	}
	if len(items) < 5 || items[4].Kind != KindOctetString {
		c.writeSearchDone(msgID, resultProtocolError)
		return
	}

	filterText := items[4].String()
	logger.Debug("LDAP search", "base", base, "scope", scope, "filter", filterText)

	filter, err := ParseFilter(filterText)
	if err != nil {
		c.writeSearchDone(msgID, resultInvalidAttributeSyntax)
		return
	}

	domains, err := c.service.ListDomains()
	if err != nil {
		c.writeSearchDone(msgID, resultUnavailable)
		return
	}
	var domain *models.Domain
	if len(domains) > 0 {
		domain = domains[0]
	}

	users, err := c.service.ListUsers()
	if err != nil {
		c.writeSearchDone(msgID, resultUnavailable)
		return
	}

	sent := 0
	for _, user := range users {
		match, err := filter.MatchesUserWithService(user, c.service)
		if err != nil {
			logger.Debug("LDAP filter evaluation failed", "user", user.Username, "error", err)
			continue
		}
		if !match {
			continue
		}

		dn := "CN=" + user.CN()
		if domain != nil {
			dn = directory.UserDN(user, domain)
		}

		entry, err := user.ToLDAPEntry(dn, c.service)
		if err != nil {
			logger.Debug("LDAP entry projection failed", "user", user.Username, "error", err)
			continue
		}

		c.writeMessage(msgID, Application(appSearchResultEntry,
			Octets([]byte(dn)),
			Seq(encodeAttributes(entry)...),
		))
		sent++
	}

	if c.metrics != nil {
		c.metrics.RecordSearch(sent)
	}
	c.writeSearchDone(msgID, resultSuccess)
}

// encodeAttributes renders an attribute map in sorted order so responses
// are byte-stable.
func encodeAttributes(entry map[string][]string) []Value {
	names := make([]string, 0, len(entry))
	for name := range entry {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]Value, 0, len(names))
	for _, name := range names {
		vals := make([]Value, 0, len(entry[name]))
		for _, v := range entry[name] {
			vals = append(vals, Str(v))
		}
		attrs = append(attrs, Seq(Str(name), SetOf(vals...)))
	}
	return attrs
}

func (c *conn) writeSearchDone(msgID int64, code uint32) {
	c.writeMessage(msgID, Application(appSearchResultDone,
		Enum(code),
		Str(""),
		Str(""),
	))
}

func (c *conn) writeMessage(msgID int64, op Value) {
	data := Seq(Int(msgID), op).Encode()
	if _, err := c.socket.Write(data); err != nil {
		logger.Debug("LDAP write failed", "address", c.socket.RemoteAddr(), "error", err)
	}
}

// dnLeadingValue extracts the value of the leading RDN, so both
// "CN=alice,DC=corp,DC=acme,DC=com" and a bare "alice" resolve to "alice".
func dnLeadingValue(dn string) string {
	first := dn
	if i := strings.IndexByte(dn, ','); i >= 0 {
		first = dn[:i]
	}
	if i := strings.IndexByte(first, '='); i >= 0 {
		return strings.TrimSpace(first[i+1:])
	}
	return strings.TrimSpace(first)
}
