package main

import (
	"os"
	"strings"

	"xuangu/internal/xuanguctl"
	"xuangu/internal/xuangud"
)

// Version is injected by build scripts via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	args := os.Args[1:]
	if shouldRouteToCtl(args) {
		os.Exit(xuanguctl.Run(args))
	}
	os.Exit(xuangud.Run(args))
}

// shouldRouteToCtl 带 -scan/-fast/-backtest 时走命令行，否则启动服务
func shouldRouteToCtl(args []string) bool {
	for _, a := range args {
		name := strings.TrimLeft(a, "-")
		if name == a {
			continue
		}
		if i := strings.IndexByte(name, '='); i >= 0 {
			if v := name[i+1:]; v == "false" || v == "0" {
				continue
			}
			name = name[:i]
		}
		switch name {
		case "scan", "fast", "backtest":
			return true
		}
	}
	return false
}
