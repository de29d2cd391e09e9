package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"voice-agent/pkg/config"
)

const version = "voice-agent cli 0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(0)
	}
	os.Exit(run(os.Args[1], os.Args[2:], os.Stdin, os.Stdout, os.Stderr))
}

// run 分发子命令并返回退出码
func run(cmd string, args []string, in io.Reader, stdout, stderr io.Writer) int {
	client := newClient(apiBaseURL())
	switch cmd {
	case "version":
		fmt.Fprintln(stdout, version)
	case "health":
		out, err := client.health()
		if err != nil {
			fmt.Fprintf(stderr, "健康检查失败: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, prettyJSON(out))
	case "config":
		return runConfig(stdout, stderr)
	case "chat":
		threadID := os.Getenv("VOICE_AGENT_THREAD_ID")
		if len(args) > 0 {
			threadID = args[0]
		}
		chatLoop(in, stdout, stderr, threadID, client.chat)
	case "local":
		return runLocal(args, in, stdout, stderr)
	case "thread":
		if len(args) == 0 || args[0] != "new" {
			fmt.Fprintln(stderr, "Usage: voice-agent thread new")
			return 1
		}
		id, err := client.newThread()
		if err != nil {
			fmt.Fprintf(stderr, "创建 thread 失败: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, id)
	case "state":
		if len(args) < 1 {
			fmt.Fprintln(stderr, "Usage: voice-agent state <thread_id>")
			return 1
		}
		st, err := client.threadState(args[0])
		if err != nil {
			fmt.Fprintf(stderr, "获取状态失败: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, prettyJSON(st))
	case "memory":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: voice-agent memory <namespace> <key>")
			return 1
		}
		data, err := client.memory(args[0], args[1])
		if err != nil {
			fmt.Fprintf(stderr, "读取记忆失败: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, prettyJSON(data))
	default:
		printUsage(stderr)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: voice-agent <command> [args]")
	fmt.Fprintln(w, "  version                  - 显示版本")
	fmt.Fprintln(w, "  health                   - 检查 API 服务")
	fmt.Fprintln(w, "  config                   - 显示配置概要")
	fmt.Fprintln(w, "  chat [thread_id]         - 交互式对话（未传时由服务端分配 thread）")
	fmt.Fprintln(w, "  local [thread_id]        - 进程内对话，不经过 API 服务")
	fmt.Fprintln(w, "  thread new               - 分配新的 thread_id")
	fmt.Fprintln(w, "  state <thread_id>        - 输出 thread 的会话状态")
	fmt.Fprintln(w, "  memory <namespace> <key> - 点查长期记忆")
}

func runConfig(stdout, stderr io.Writer) int {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "api.addr=%s\n", cfg.API.Addr())
	fmt.Fprintf(stdout, "graph.max_steps=%d\n", cfg.Graph.MaxSteps)
	fmt.Fprintf(stdout, "memory.short_term_bound=%d\n", cfg.Memory.ShortTermBound)
	fmt.Fprintf(stdout, "storage.kv=%s\n", cfg.Storage.KV.Type)
	fmt.Fprintf(stdout, "storage.checkpoint=%s\n", cfg.Storage.Checkpoint.Type)
	fmt.Fprintf(stdout, "model.llm=%s/%s\n", cfg.Model.LLM.Provider, cfg.Model.LLM.Model)
	return 0
}

// sendFunc 发送一条消息并返回回复；threadID 为空时由对端分配
type sendFunc func(threadID, message string) (*chatReply, error)

// chatLoop 逐行读取输入直到 EOF 或 exit/quit，沿用首轮分配的 thread
func chatLoop(in io.Reader, stdout, stderr io.Writer, threadID string, send sendFunc) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(stdout, "> ")
		line, err := reader.ReadString('\n')
		msg := strings.TrimSpace(line)
		if msg == "exit" || msg == "quit" {
			return
		}
		if msg != "" {
			reply, sendErr := send(threadID, msg)
			switch {
			case sendErr != nil:
				fmt.Fprintf(stderr, "发送失败: %v\n", sendErr)
			case reply.Error:
				threadID = reply.ThreadID
				fmt.Fprintf(stdout, "[%s] error: %s\n", reply.ThreadID, reply.ErrorMessage)
			default:
				threadID = reply.ThreadID
				fmt.Fprintf(stdout, "[%s] %s\n", reply.ThreadID, reply.Response)
			}
		}
		if err != nil {
			return
		}
	}
}
