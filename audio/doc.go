// Package audio implements the real-time capture pipeline: downmixing and
// resampling of raw capture frames to fixed-rate mono PCM, slicing into
// fixed-size chunks, and batching of encoded chunks into transport units.
//
// The processing path is callback-driven and never blocks: capture frames
// are downmixed, resampled and chunked inline, while the transport emit
// happens on the batcher's own timer/threshold trigger.
package audio
