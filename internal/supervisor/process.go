package supervisor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

type Process interface {
	Pid() int
	Wait() error
	Signal(sig os.Signal) error
	Kill() error
}

type Starter interface {
	Start(child Child) (Process, error)
}

// ExecStarter runs children as OS processes and forwards their output.
type ExecStarter struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (e ExecStarter) Start(child Child) (Process, error) {
	cmd := exec.Command(child.Command, child.Args...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", child.Name, err)
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int                   { return p.cmd.Process.Pid }
func (p *execProcess) Wait() error                { return p.cmd.Wait() }
func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }
func (p *execProcess) Kill() error                { return p.cmd.Process.Kill() }
