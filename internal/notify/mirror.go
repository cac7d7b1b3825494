package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/bid"
)

// Mirror sends every message to a primary notifier and copies it to a
// secondary one. Only the primary outcome is reported.
type Mirror struct {
	primary   bid.Notifier
	secondary bid.Notifier
	logger    *zap.Logger
}

// NewMirror returns primary unchanged when secondary is nil.
func NewMirror(primary, secondary bid.Notifier, logger *zap.Logger) bid.Notifier {
	if secondary == nil {
		return primary
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{primary: primary, secondary: secondary, logger: logger}
}

// Send implements bid.Notifier.
func (m *Mirror) Send(ctx context.Context, text string) bid.Delivery {
	d := m.primary.Send(ctx, text)
	if copyResult := m.secondary.Send(ctx, text); !copyResult.OK {
		m.logger.Warn("mirror delivery failed",
			zap.Int("errcode", copyResult.ErrCode),
			zap.String("errmsg", copyResult.ErrMsg),
		)
	}
	return d
}
