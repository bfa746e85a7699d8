package fill

import (
	"context"

	"go.uber.org/zap"

	"fillScope/internal/model"
	"fillScope/internal/queue"
	"fillScope/internal/storage"
)

// Fanout publishes the follow-on jobs of a persisted Fill. Every job carries a deterministic
// id so publishing twice is harmless. Failures are logged and never returned.
type Fanout struct {
	pub       queue.Publisher
	addresses storage.AddressStore
	logger    *zap.Logger
}

// NewFanout builds a Fanout.
func NewFanout(pub queue.Publisher, addresses storage.AddressStore, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{pub: pub, addresses: addresses, logger: logger}
}

type fanoutJob struct {
	queue   string
	name    string
	key     string
	payload any
}

// Publish enqueues indexing, pricing and address resolution jobs for fill.
func (f *Fanout) Publish(ctx context.Context, fill model.Fill) {
	if f.pub == nil {
		return
	}

	id := fill.ID.String()
	ref := model.FillJob{FillID: fill.ID}
	jobs := []fanoutJob{
		{model.QueueIndexing, model.JobIndexFill, id, ref},
		{model.QueueIndexing, model.JobIndexTradedTokens, id, ref},
		{model.QueueIndexing, model.JobIndexTraderFills, id, ref},
	}
	if fill.ProtocolFee != nil && fill.ProtocolFee.IsPositive() {
		jobs = append(jobs, fanoutJob{model.QueuePricing, model.JobConvertProtocolFee, id, model.ConvertProtocolFeeJob{
			FillID:      fill.ID,
			ProtocolFee: *fill.ProtocolFee,
		}})
	}
	if len(fill.Fees) > 0 {
		jobs = append(jobs, fanoutJob{model.QueuePricing, model.JobConvertRelayerFees, id, ref})
	}

	for _, address := range f.unknownAddresses(ctx, fill) {
		jobs = append(jobs, fanoutJob{model.QueueAddressProcessing, model.JobResolveAddressType, address, model.ResolveAddressTypeJob{
			Address: address,
		}})
	}

	for _, job := range jobs {
		opts := queue.Options{JobID: model.JobID(job.name, job.key)}
		if err := queue.PublishJSON(ctx, f.pub, job.queue, job.name, job.payload, opts); err != nil {
			f.logger.Error("publish follow-on job failed",
				zap.String("fill_id", id),
				zap.String("job", job.name),
				zap.Error(err),
			)
		}
	}
}

func (f *Fanout) unknownAddresses(ctx context.Context, fill model.Fill) []string {
	addresses := fill.Addresses()
	if len(addresses) == 0 {
		return nil
	}
	if f.addresses == nil {
		return addresses
	}

	known, err := f.addresses.KnownAddresses(ctx, addresses)
	if err != nil {
		f.logger.Warn("load known addresses failed", zap.String("fill_id", fill.ID.String()), zap.Error(err))
		return addresses
	}

	out := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if !known[model.NormalizeAddress(address)] {
			out = append(out, address)
		}
	}
	return out
}
