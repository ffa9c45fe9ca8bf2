package directory

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/internal/logger"
	"github.com/mextdomen/mextdomen/pkg/events"
)

// logAction appends one line to the audit log and publishes the mutation on
// the event hub. The line format is stable:
//
//	<RFC3339> | ACTION: <name> | DETAILS: <text> | USER: <Some(uuid)|None>
//
// A failed file write degrades to a warning; the mutation itself has already
// been committed and must not be rolled back over a logging problem.
func (s *Service) logAction(action, details string, actor *uuid.UUID) {
	if s.auditPath != "" {
		user := "None"
		if actor != nil {
			user = fmt.Sprintf("Some(%s)", actor)
		}
		line := fmt.Sprintf("%s | ACTION: %s | DETAILS: %s | USER: %s\n",
			time.Now().UTC().Format(time.RFC3339), action, details, user)

		if err := s.appendAuditLine(line); err != nil {
			logger.Warn("audit log write failed",
				"path", s.auditPath,
				"action", action,
				"error", err)
		}
	}

	if s.hub != nil {
		s.hub.Publish(events.AuditEvent{
			Action:  action,
			ActorID: actor,
			Metadata: map[string]string{
				"details": details,
			},
		})
	}
}

func (s *Service) appendAuditLine(line string) error {
	f, err := os.OpenFile(s.auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(line)
	return err
}
