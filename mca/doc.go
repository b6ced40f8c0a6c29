// Package mca runs request/response transactions with an Amptek MCA8000D
// multichannel analyzer.
//
// A Session owns a Transport (USB, serial or the simulator) and exposes one
// method per device operation. Each call builds a request frame, writes it,
// reads one response frame and decodes it with package protocol.
//
// # Basic Usage
//
//	t, err := usb.Open()
//	if err != nil {
//	    return err
//	}
//	sess := mca.New(t, mca.WithTimeout(time.Second))
//	defer sess.Close()
//
//	status, err := sess.RequestStatus(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println("firmware", status.FirmwareVersion())
//
// # Timed Acquisition
//
// Acquire runs the full stop, clear, preset, enable, poll and read out
// sequence and reports its progress:
//
//	sess := mca.New(t,
//	    mca.WithProgressCallback(func(p mca.Progress) {
//	        fmt.Printf("[%s] %.0f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
//	spectrum, status, err := sess.Acquire(ctx, 20)
//
// # Errors
//
// Transport failures are returned as *TransportError. IsTransient reports
// timeouts, which may simply be retried. IsStructural reports corrupt or
// desynchronised responses (checksum, short buffer, unknown size code).
// Configuration commands return the device's acknowledge frame; a non-OK
// acknowledge becomes a *protocol.AckError through Frame.AckErr.
//
// # Concurrency
//
// The wire protocol has no transaction identifiers, so a Session serialises
// its operations. It is safe to share between goroutines.
package mca
