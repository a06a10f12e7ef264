//go:build llama

package llamacpp

// rpath $ORIGIN lets the loader find libllama.so next to the binary in ./bin.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../../bin -lllama
*/
import "C"
