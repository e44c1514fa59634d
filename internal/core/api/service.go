// Package api implements the smsfilter.v1.FilterService gRPC service used
// by message-source collaborators to obtain decisions and manage rules.
package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/smsfilter/internal/backup"
	"github.com/solatis/smsfilter/internal/core/auth"
	"github.com/solatis/smsfilter/internal/core/config"
	"github.com/solatis/smsfilter/internal/rules"
	"github.com/solatis/smsfilter/internal/types"
)

// Evaluator decides a message. Implemented by *rules.Engine.
type Evaluator interface {
	Evaluate(ctx context.Context, msg types.CandidateMessage) (rules.MatchResult, error)
}

// Archive stores blocked messages. Implemented by *store.MessageStore.
type Archive interface {
	Archive(ctx context.Context, msg types.CandidateMessage, ruleID types.RuleID) (types.BlockedMessage, error)
	List(ctx context.Context, unseenOnly bool) ([]types.BlockedMessage, error)
}

// FilterService implements FilterServiceServer.
type FilterService struct {
	engine  Evaluator
	archive Archive
	backups *backup.Manager
	cfg     *config.ServiceConfig
	logger  *slog.Logger
}

// NewFilterService creates the service. A nil logger falls back to slog.Default.
func NewFilterService(engine Evaluator, archive Archive, backups *backup.Manager, cfg *config.ServiceConfig, logger *slog.Logger) (*FilterService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if archive == nil {
		return nil, fmt.Errorf("archive cannot be nil")
	}
	if backups == nil {
		return nil, fmt.Errorf("backups cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FilterService{
		engine:  engine,
		archive: archive,
		backups: backups,
		cfg:     cfg,
		logger:  logger.With("component", "api"),
	}, nil
}

// Evaluate decides {sender, body}. When the decision is BLOCK and archiving
// is enabled the message is archived and its message_id returned.
func (s *FilterService) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sender, err := stringField(req, "sender")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	body, err := stringField(req, "body")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	dryRun, err := boolField(req, "dry_run")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	msg := types.CandidateMessage{Sender: sender, Body: body}

	result, err := s.engine.Evaluate(ctx, msg)
	if err != nil {
		return nil, statusError(err)
	}

	resp := map[string]interface{}{
		"decision":      result.Decision.String(),
		"matched_rules": result.MatchCount,
		"rule_index":    result.Index,
	}
	if result.Rule != nil {
		resp["rule_id"] = string(result.Rule.ID())
	}

	if result.Decision == types.DecisionBlock && s.cfg.ArchiveBlocked && !dryRun {
		archived, err := s.archive.Archive(ctx, msg, result.Rule.ID())
		if err != nil {
			// The decision stands even if the archive write fails.
			s.logger.Error("failed to archive blocked message", "error", err, "client", clientName(ctx))
		} else {
			resp["message_id"] = string(archived.ID)
		}
	}

	return newStruct(resp)
}

// ExportRules returns the current rule set as a {format} document.
func (s *FilterService) ExportRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	format, err := formatField(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var buf bytes.Buffer
	count, err := s.backups.ExportTo(ctx, &buf, format)
	if err != nil {
		return nil, statusError(err)
	}

	return newStruct(map[string]interface{}{
		"document": buf.String(),
		"format":   string(format),
		"count":    count,
	})
}

// ImportRules replaces the rule set with the given document. Nothing
// changes unless every record is valid.
func (s *FilterService) ImportRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	format, err := formatField(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	document, err := stringField(req, "document")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if int64(len(document)) > s.cfg.MaxImportSize {
		return nil, statusError(fmt.Errorf("%w: %d bytes (max %d)", types.ErrDocumentTooLarge, len(document), s.cfg.MaxImportSize))
	}

	imported, err := s.backups.ImportBytes(ctx, []byte(document), format)
	if err != nil {
		return nil, statusError(err)
	}

	s.logger.Info("rule set replaced", "count", len(imported), "client", clientName(ctx))
	return newStruct(map[string]interface{}{"imported": len(imported)})
}

// ListBlocked returns archived messages, newest first.
func (s *FilterService) ListBlocked(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	unseenOnly := false
	if v, ok := req.GetFields()["unseen_only"]; ok {
		b, isBool := v.GetKind().(*structpb.Value_BoolValue)
		if !isBool {
			return nil, status.Error(codes.InvalidArgument, "unseen_only must be a boolean")
		}
		unseenOnly = b.BoolValue
	}

	msgs, err := s.archive.List(ctx, unseenOnly)
	if err != nil {
		return nil, statusError(err)
	}

	list := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		list = append(list, map[string]interface{}{
			"message_id":  string(m.ID),
			"sender":      m.Sender,
			"body":        m.Body,
			"received_at": m.ReceivedAt.UTC().Format(time.RFC3339Nano),
			"seen":        m.Seen,
			"rule_id":     string(m.RuleID),
		})
	}
	return newStruct(map[string]interface{}{"messages": list})
}

// stringField returns a string field. A missing field is the empty string.
func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", nil
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", fmt.Errorf("%s must be a string", name)
	}
	return s.StringValue, nil
}

func boolField(req *structpb.Struct, name string) (bool, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return false, nil
	}
	b, isBool := v.GetKind().(*structpb.Value_BoolValue)
	if !isBool {
		return false, fmt.Errorf("%s must be a bool", name)
	}
	return b.BoolValue, nil
}

func formatField(req *structpb.Struct) (backup.Format, error) {
	name, err := stringField(req, "format")
	if err != nil {
		return "", err
	}
	return backup.ParseFormat(name)
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("failed to encode response: %v", err))
	}
	return out, nil
}

func clientName(ctx context.Context) string {
	if c, ok := auth.ClientFromContext(ctx); ok {
		return c.Name
	}
	return ""
}
