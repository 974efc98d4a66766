package settlement

import (
	"context"

	domsettle "github.com/facebouk/salepoint/internal/domain/settlement"
)

// Gateway is the outbound port to the remote settlement service. Each
// call issues exactly one network request. Failures are typed:
// *settlement.TransportError for network-level failures,
// *settlement.ServiceError for structured business rejections.
type Gateway interface {
	SubmitFace(ctx context.Context, req domsettle.Request) (receipt string, err error)
	SubmitCode(ctx context.Context, req domsettle.Request) (receipt string, err error)
}
