//go:build tinygo && baremetal && !rp2040 && !rp2350

package hal

func newDisplay() (Framebuffer, error) {
	return nil, ErrNotImplemented
}
