package matrixdrive_test

import (
	"fmt"

	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
	"github.com/fkcurrie/dotmatrix-golang/pkg/gamma"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
	"github.com/fkcurrie/dotmatrix-golang/pkg/matrixdrive"
)

func ExampleBuilder() {
	fb := framebuffer.New()
	fb.Fill(128)

	b, err := matrixdrive.NewBuilder(matrixdrive.DefaultLayout, fb, gamma.Default())
	if err != nil {
		fmt.Printf("Failed to create builder: %v\n", err)
		return
	}

	line := make([]uint16, matrixdrive.LineSamples)
	n := b.FirstHalf(line, 5)
	n += b.SecondHalf(line[n:], 5, led1642.DefaultConfig)
	fmt.Println("samples:", n)

	// Everything but the brightness segments
	off := 0
	for _, seg := range matrixdrive.DefaultLayout.Segments() {
		switch {
		case seg.Kind != matrixdrive.SegPhase:
			fmt.Println(off, seg.Kind)
		case seg.Phase == matrixdrive.LastPhase:
			fmt.Println(off, seg.Kind, seg.Phase)
		}
		off += seg.Len()
	}
	// Output:
	// samples: 4096
	// 1920 dummy
	// 2048 dummy
	// 3536 config
	// 3664 row-off
	// 3688 all-off
	// 3816 row-select
	// 3840 phase 15
	// 3968 all-on
}
