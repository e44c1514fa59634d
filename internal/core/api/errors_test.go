package api

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/smsfilter/internal/types"
)

func TestStatusError(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("rule 2: %w", types.ErrPatternCompile), codes.InvalidArgument},
		{types.ErrTooManyRules, codes.InvalidArgument},
		{fmt.Errorf("%w: abc", types.ErrRuleNotFound), codes.NotFound},
		{types.ErrMessageNotFound, codes.NotFound},
		{fmt.Errorf("load: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{errors.New("disk I/O error"), codes.Unavailable},
	}
	for _, tt := range tests {
		if got := status.Code(statusError(tt.err)); got != tt.want {
			t.Errorf("statusError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
