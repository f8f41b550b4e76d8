package xuanguctl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func ensureParentDir(path string) error {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil
	}
	dir := filepath.Dir(p)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// openOutput 路径为空时写 stdout
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if strings.TrimSpace(path) == "" {
		return stdout, func() error { return nil }, nil
	}
	if err := ensureParentDir(path); err != nil {
		return nil, nil, fmt.Errorf("prepare output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
