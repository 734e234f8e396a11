package sh

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/spf13/pflag"

	"github.com/robotalks/crsflink/pkg/bridge"
	"github.com/robotalks/crsflink/pkg/env"
	fx "github.com/robotalks/crsflink/pkg/framework"
)

// InvokeTimeout bounds the wait for the loop to run a command.
const InvokeTimeout = time.Second

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoStart   bool

	Shell  *ishell.Shell
	Config *env.Config
	Link   *LinkLoop
}

// LinkLoop is a running bridge.
type LinkLoop struct {
	Ctx    context.Context
	Cancel func()
	Bridge *bridge.Bridge

	done chan error
}

const (
	shellKey       = "$shell"
	stoppedPrompt  = "[stopped] > "
	runningPattern = "[%s] > "
)

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&StartCmd,
		&StopCmd,
	}
)

// SetupFlags registers the shell flags on fs.
func SetupFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&evalOnly, "eval", "e", evalOnly, "Evaluation only, no interactive shell.")
	fs.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds adds commands to all shells created afterwards.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(stoppedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeRunning wraps a command func which requires a running link.
func MustBeRunning(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Link == nil {
			c.Err(fmt.Errorf("link not started"))
			return
		}
		fn(c)
	}
}

// Invoke runs fn on the loop of the link and waits for it.
func Invoke(c *ishell.Context, fn func(b *bridge.Bridge) error) error {
	s := ShellFrom(c)
	if s.Link == nil {
		err := fmt.Errorf("link not started")
		c.Err(err)
		return err
	}
	b := s.Link.Bridge
	errCh := make(chan error, 1)
	b.Loop.Invoke(func(fx.ControlContext) {
		errCh <- fn(b)
	})
	select {
	case err := <-errCh:
		if err != nil {
			c.Err(err)
		}
		return err
	case <-time.After(InvokeTimeout):
		c.Err(fmt.Errorf("loop not responding"))
		return context.DeadlineExceeded
	}
}

// Print prints v as JSON when enabled, otherwise the text.
func Print(c *ishell.Context, v interface{}, text string) {
	if !ShellFrom(c).OutputJSON {
		c.Print(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// WithAutoStart sets AutoStart.
func (s *Shell) WithAutoStart(en bool) *Shell {
	s.AutoStart = en
	return s
}

// Start opens the link and runs it in the background.
func (s *Shell) Start() error {
	b, err := bridge.New(s.Config)
	if err != nil {
		return err
	}
	ll := &LinkLoop{Bridge: b, done: make(chan error, 1)}
	ll.Ctx, ll.Cancel = context.WithCancel(context.Background())
	s.Stop()
	s.Link = ll
	go func() {
		err := b.Run(ll.Ctx)
		b.Close()
		ll.done <- err
	}()
	name := s.Config.Device
	if s.Config.WebsocketURL != "" {
		name = s.Config.WebsocketURL
	}
	s.Shell.SetPrompt(fmt.Sprintf(runningPattern, name))
	return nil
}

// Stop stops the running link and waits until it is released.
func (s *Shell) Stop() {
	if s.Link == nil {
		return
	}
	s.Link.Cancel()
	<-s.Link.done
	s.Link = nil
	s.Shell.SetPrompt(stoppedPrompt)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoStart {
		if err := s.Start(); err != nil {
			log.Fatalf("start link: %v", err)
		}
		defer s.Stop()
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// StartCmd starts the link.
	StartCmd = ishell.Cmd{
		Name:    "start",
		Aliases: []string{"connect", "c"},
		Help:    "open the device and start the link",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Start(); err != nil {
				c.Err(err)
			}
		},
	}

	// StopCmd stops the link.
	StopCmd = ishell.Cmd{
		Name:    "stop",
		Aliases: []string{"disconnect", "d"},
		Help:    "stop the link and close the device",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Stop()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main(args ...string) {
	New(env.Default()).WithAutoStart(true).Run(args...)
}
