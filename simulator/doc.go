// Package simulator provides a software MCA8000D.
//
// A Device implements mca.Transport. It answers status, spectrum,
// configuration and acquisition control requests the way the instrument
// does, accumulating a synthetic spectrum while acquisition is enabled and
// stopping at the preset real time. Time is taken from an injectable clock
// so tests can drive acquisition without sleeping.
//
// Faults can be injected per response:
//
//	dev := simulator.New()
//	dev.CorruptNextResponse() // next read fails its checksum
//	dev.DropNextResponse()    // next read times out
//
//	sess := mca.New(dev)
package simulator
