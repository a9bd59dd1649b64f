package offload

import (
	"context"
	"time"

	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
	"github.com/edonshumolli/satellite-quic-proxy/metrics"
	"golang.org/x/sync/errgroup"
)

// Dispatcher is the Offload Dispatcher (C6). It is shared by every
// Connection and is internally concurrent-safe (spec.md §3); none of its
// methods mutate shared state beyond the metrics registry, whose
// collectors are themselves concurrency-safe.
type Dispatcher struct {
	transport Transport
	metrics   *metrics.Registry
	timeout   time.Duration
}

// New creates a Dispatcher routing to transport when it reports itself
// available, falling back to software otherwise. Pass offload.NilTransport{}
// to always use software. reg may be nil to disable metrics (tests).
func New(transport Transport, reg *metrics.Registry, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{transport: transport, metrics: reg, timeout: timeout}
}

func (d *Dispatcher) observe(op Op, path string, bytes int, start time.Time) {
	if d.metrics == nil {
		return
	}
	d.metrics.DispatcherOps.WithLabelValues(op.String(), path).Inc()
	d.metrics.DispatcherBytes.WithLabelValues(op.String()).Add(float64(bytes))
	d.metrics.DispatcherLatency.WithLabelValues(op.String(), path).Observe(time.Since(start).Seconds())
}

// callAccelerator issues req against the transport with a deadline,
// translating context/transport failures into OffloadError.
func (d *Dispatcher) callAccelerator(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	resp, err := d.transport.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, qerr.NewOffloadError(qerr.Timeout, err.Error())
		}
		return Response{}, qerr.NewOffloadError(qerr.TransportFault, err.Error())
	}
	if resp.Err != nil {
		return Response{}, qerr.NewOffloadError(qerr.TransportFault, resp.Err.Error())
	}
	return resp, nil
}

// Seal encrypts plaintext with AES-128-GCM, per spec.md §4.6. It routes to
// the accelerator when available; accelerator faults surface as
// OffloadError and the caller (Connection Engine) decides whether to retry
// on the software path (spec.md §7) — Seal itself does not retry.
func (d *Dispatcher) Seal(ctx context.Context, key, nonce, aad, plaintext []byte) ([]byte, error) {
	start := time.Now()
	if d.transport.Available() {
		resp, err := d.callAccelerator(ctx, Request{Op: OpSeal, Key: key, Nonce: nonce, AAD: aad, Payload: plaintext})
		if err == nil {
			d.observe(OpSeal, "accelerator", len(plaintext), start)
			return resp.Out, nil
		}
		d.observe(OpSeal, "accelerator_fault", len(plaintext), start)
		return nil, err
	}
	out, err := sealSoftware(key, nonce, aad, plaintext)
	if err != nil {
		return nil, qerr.NewOffloadError(qerr.TransportFault, err.Error())
	}
	d.observe(OpSeal, "software", len(plaintext), start)
	return out, nil
}

// Open decrypts ciphertext, returning AuthFailed on tag verification
// failure via the software path, or whatever the accelerator reports.
func (d *Dispatcher) Open(ctx context.Context, key, nonce, aad, ciphertext []byte) ([]byte, error) {
	start := time.Now()
	if d.transport.Available() {
		resp, err := d.callAccelerator(ctx, Request{Op: OpOpen, Key: key, Nonce: nonce, AAD: aad, Payload: ciphertext})
		if err == nil {
			d.observe(OpOpen, "accelerator", len(ciphertext), start)
			return resp.Out, nil
		}
		d.observe(OpOpen, "accelerator_fault", len(ciphertext), start)
		return nil, err
	}
	out, err := openSoftware(key, nonce, aad, ciphertext)
	if err != nil {
		return nil, qerr.NewOffloadError(qerr.AuthFailed, err.Error())
	}
	d.observe(OpOpen, "software", len(ciphertext), start)
	return out, nil
}

// Compress runs the QCMP container encoder, accelerator-first.
func (d *Dispatcher) Compress(ctx context.Context, data []byte) ([]byte, error) {
	start := time.Now()
	if d.transport.Available() {
		resp, err := d.callAccelerator(ctx, Request{Op: OpCompress, Payload: data})
		if err == nil {
			d.observe(OpCompress, "accelerator", len(data), start)
			return resp.Out, nil
		}
		d.observe(OpCompress, "accelerator_fault", len(data), start)
		return nil, err
	}
	out := Compress(data)
	d.observe(OpCompress, "software", len(data), start)
	return out, nil
}

// Decompress inverts Compress, returning Malformed on any structural
// violation in the container.
func (d *Dispatcher) Decompress(ctx context.Context, data []byte) ([]byte, error) {
	start := time.Now()
	if d.transport.Available() {
		resp, err := d.callAccelerator(ctx, Request{Op: OpDecompress, Payload: data})
		if err == nil {
			d.observe(OpDecompress, "accelerator", len(data), start)
			return resp.Out, nil
		}
		d.observe(OpDecompress, "accelerator_fault", len(data), start)
		return nil, err
	}
	out, err := Decompress(data)
	if err != nil {
		return nil, qerr.NewOffloadError(qerr.Malformed, err.Error())
	}
	d.observe(OpDecompress, "software", len(data), start)
	return out, nil
}

// FrameOut, AckOut and Retransmit pre-assemble outbound packet bytes for
// the accelerator path; the software fallback assembles the equivalent
// bytes by calling assemble, which the Connection Engine supplies (it owns
// the wire codec calls these need — internal/wire — so the dispatcher
// itself never imports the codec, keeping C6 a leaf with no back-reference
// into C1's caller).
func (d *Dispatcher) FrameOut(ctx context.Context, connID []byte, pn int64, payload []byte, assemble func() ([]byte, error)) ([]byte, error) {
	return d.passthroughOrAssemble(ctx, OpFrameOut, connID, pn, payload, assemble)
}

func (d *Dispatcher) AckOut(ctx context.Context, connID []byte, largest int64, assemble func() ([]byte, error)) ([]byte, error) {
	return d.passthroughOrAssemble(ctx, OpAckOut, connID, largest, nil, assemble)
}

func (d *Dispatcher) Retransmit(ctx context.Context, connID []byte, pn int64, assemble func() ([]byte, error)) ([]byte, error) {
	return d.passthroughOrAssemble(ctx, OpRetransmit, connID, pn, nil, assemble)
}

func (d *Dispatcher) passthroughOrAssemble(ctx context.Context, op Op, connID []byte, pn int64, payload []byte, assemble func() ([]byte, error)) ([]byte, error) {
	start := time.Now()
	if d.transport.Available() {
		resp, err := d.callAccelerator(ctx, Request{Op: op, ConnectionID: connID, PacketNumber: pn, Payload: payload})
		if err == nil {
			d.observe(op, "accelerator", len(resp.Out), start)
			return resp.Out, nil
		}
		d.observe(op, "accelerator_fault", 0, start)
		// transient frame/ack/retransmit errors fall back silently
		// (spec.md §4.6 routing policy).
	}
	out, err := assemble()
	if err != nil {
		return nil, err
	}
	d.observe(op, "software", len(out), start)
	return out, nil
}

// CancelAll runs every fn concurrently and returns once all of them have
// returned, propagating the first failure; each fn's context is canceled
// when ctx is or when another fn fails. It models cancelling all
// outstanding Dispatcher calls for a connection being reaped or closed
// (spec.md §5): the caller passes one closure per in-flight call.
func (d *Dispatcher) CancelAll(ctx context.Context, fns ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}
