// Package mcafile reads and writes the text files used alongside an MCA8000D.
//
// # Configuration Files
//
// A configuration file holds text configuration commands, one or more per
// line, each terminated by ';'. Comments start with '#' or "--" and run to
// the end of the line:
//
//	# detector setup
//	RESC=Y;
//	MCAC=1024;   -- 1024 channels
//	GAIA=3; PRER=OFF;
//
// Keys are case-insensitive and stored upper-case. When a key repeats, the
// later value wins.
//
// # Spectrum Files
//
// A spectrum file holds one decimal count per line, channel 0 first:
//
//	0
//	12
//	7
//
// # Usage
//
//	cfg, err := mcafile.ParseConfig("mca8000d.cfg")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ack, err := sess.LoadConfig(ctx, cfg)
//
//	spectrum, _, err := sess.RequestSpectrum(ctx, false, false)
//	err = mcafile.WriteSpectrum("run1.dat", spectrum)
package mcafile
