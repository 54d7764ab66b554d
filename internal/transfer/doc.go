// Package transfer streams a single HTTP resource to a file on disk with
// progress reporting and resumption from a partial file.
//
// # Fresh and resumed transfers
//
// [Engine.Transfer] issues a plain GET when resumeOffset is zero and a
// "Range: bytes=<offset>-" request otherwise:
//
//	eng, err := transfer.New(transfer.WithLogger(logger))
//	res, err := eng.Transfer(ctx, url, "/games/game.zip.part", 0, sink)
//	// connection dropped; res.Size bytes are on disk
//	res, err = eng.Transfer(ctx, url, "/games/game.zip.part", res.Size, sink)
//
// A fresh transfer truncates the destination, a resumed one appends to it.
// When a server ignores the range and answers 200 with the full body, the
// engine truncates the file and starts over instead of appending.
//
// Bytes written before a failure stay on disk. The engine never retries and
// never deletes a partial file; retry-by-resume is the caller's policy.
//
// # Progress
//
// After every chunk the engine hands a [Sample] to the caller's [Sink].
// The sink runs on the transfer goroutine, so it must return quickly;
// [ChannelSink] and [LatestSink] decouple slow consumers.
//
// The caller must not run two transfers into the same destination at once.
package transfer
