package main

import (
	"github.com/turtacn/taskflow/cmd/cli"
)

// main is the entry point for the taskflow-admin command-line tool.
// main 是 taskflow-admin 命令行工具的入口点，所有逻辑由 cli 包实现。
func main() {
	cli.Execute()
}
