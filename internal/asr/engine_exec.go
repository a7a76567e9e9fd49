package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"

	"github.com/mattn/go-shellwords"
)

// execEngine runs one inference at a time. sem is a single slot so a
// queued caller can give up when its ctx ends.
type execEngine struct {
	cmd []string
	sem chan struct{}
}

// NewExecEngine runs an external inference command once per file. The
// command receives the file and parameters as flags and prints JSON on
// stdout: a list of {key,text} objects or a single one.
func NewExecEngine(command string) (Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse asr engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("asr engine command is empty")
	}
	return &execEngine{cmd: args, sem: make(chan struct{}, 1)}, nil
}

func (e *execEngine) Generate(ctx context.Context, req GenerateRequest) ([]EngineResult, error) {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.sem }()

	base := e.cmd[0]
	cmdArgs := append([]string{}, e.cmd[1:]...)
	cmdArgs = append(cmdArgs, execArgs(req)...)

	command := exec.CommandContext(ctx, base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("asr engine command failed: %w: %s", err, stderr.String())
	}
	return decodeExecOutput(stdout.Bytes())
}

func execArgs(req GenerateRequest) []string {
	args := []string{
		"--input", req.Input,
		"--language", req.Language,
		"--use-itn=" + strconv.FormatBool(req.UseITN),
		"--batch-size-s", strconv.Itoa(req.BatchSizeSeconds),
	}
	keys := make([]string, 0, len(req.Params))
	for k := range req.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("--%s=%s", k, req.Params[k]))
	}
	return args
}

func decodeExecOutput(out []byte) ([]EngineResult, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode asr engine response: empty output")
	}
	if trimmed[0] == '[' {
		var results []EngineResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("decode asr engine response: %w", err)
		}
		return results, nil
	}
	var single EngineResult
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("decode asr engine response: %w", err)
	}
	return []EngineResult{single}, nil
}
