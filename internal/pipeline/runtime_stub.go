//go:build !govips || !cgo

package pipeline

func Startup() error {
	return nil
}

func Shutdown() {}

const Backend = "imaging"

func newCodec() Codec {
	return stdCodec{}
}
