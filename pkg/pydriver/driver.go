package pydriver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"

	"github.com/takeiteasy/sokol-hpp/tools/pkg/bindgen"
)

// Options configures the Python interpreter
type Options struct {
	// Command is the interpreter command line (i.e. "python3 -u" or "uv run python")
	Command string
	// Dir is the bindgen directory. The interpreter runs inside it and imports Module from it.
	Dir    string
	Module string
	// Version is a semver constraint for the interpreter version. An empty string disables the check.
	Version string
	// Env is appended to the process environment
	Env []string
}

// Driver implements bindgen.Generator on top of a Python bindgen module
type Driver struct {
	opts Options
	proc *process
}

type process struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	stderrDone chan struct{}
}

var _ bindgen.Generator = (*Driver)(nil)

// New returns a driver which hasn't started its interpreter, yet
func New(opts Options) *Driver {
	if opts.Command == "" {
		opts.Command = "python3 -u"
	}
	if opts.Module == "" {
		opts.Module = "gen_cpp"
	}

	return &Driver{opts: opts}
}

// Prepare starts a fresh interpreter, imports the module and calls its prepare() function
func (d *Driver) Prepare(ctx context.Context) error {
	if d.proc != nil {
		d.stop(true)
	}

	err := d.start(ctx)
	if err != nil {
		return err
	}

	resp, err := d.call(ctx, opHello, map[string]interface{}{"module": d.opts.Module})
	if err == nil && !resp.OK {
		err = remoteError(opHello, resp)
	}
	if err == nil {
		bindgen.Log(ctx).Debug().Str("version", resp.Version).Msgf("Loaded %s", d.opts.Module)
		err = checkVersion(d.opts.Version, resp.Version)
	}
	if err != nil {
		d.stop(true)
		return eris.Wrapf(err, "failed to load %s", d.opts.Module)
	}

	resp, err = d.call(ctx, opPrepare, nil)
	if err == nil && !resp.OK {
		err = remoteError(opPrepare, resp)
	}
	if err != nil {
		d.stop(true)
		return err
	}

	return nil
}

// Gen passes a single task to the module's gen() function
func (d *Driver) Gen(ctx context.Context, task bindgen.Task) error {
	deps := task.Deps
	if deps == nil {
		deps = []string{}
	}

	resp, err := d.call(ctx, opGen, map[string]interface{}{
		"header": task.Header,
		"prefix": task.Prefix,
		"deps":   deps,
	})
	if err != nil {
		return err
	}
	if !resp.OK {
		return remoteError(opGen, resp)
	}
	return nil
}

// Finalize calls the module's finalize() function and shuts the interpreter down
func (d *Driver) Finalize(ctx context.Context, output string) error {
	resp, err := d.call(ctx, opFinalize, map[string]interface{}{"output": output})
	if err != nil {
		d.stop(true)
		return err
	}
	if !resp.OK {
		d.stop(true)
		return remoteError(opFinalize, resp)
	}

	_, err = d.call(ctx, opExit, nil)
	if err != nil {
		d.stop(true)
		return eris.Wrap(err, "failed to shut down python")
	}

	return d.stop(false)
}

// Close kills the interpreter if it's still running. It's safe to call Close multiple times.
func (d *Driver) Close() error {
	return d.stop(true)
}

func (d *Driver) start(ctx context.Context) error {
	argv, err := SplitCommand(d.opts.Command, d.opts.Env)
	if err != nil {
		return err
	}

	argv = append(argv, "-c", driverScript)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = d.opts.Dir
	cmd.Env = append(append(os.Environ(), d.opts.Env...), "PYTHONUNBUFFERED=1")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return eris.Wrap(err, "failed to open stdin pipe")
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return eris.Wrap(err, "failed to open stdout pipe")
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return eris.Wrap(err, "failed to open stderr pipe")
	}

	err = cmd.Start()
	if err != nil {
		return eris.Wrapf(err, "failed to launch %s", argv[0])
	}

	proc := &process{
		cmd:        cmd,
		stdin:      stdin,
		stdout:     bufio.NewReader(stdout),
		stderrDone: make(chan struct{}),
	}

	logger := bindgen.Log(ctx)
	go func() {
		defer close(proc.stderrDone)

		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			logger.Info().Str("source", "python").Msg(scanner.Text())
		}
	}()

	d.proc = proc
	bindgen.Log(ctx).Debug().Str("dir", d.opts.Dir).Strs("argv", argv[:len(argv)-1]).Msg("Started python")
	return nil
}

func (d *Driver) call(ctx context.Context, op string, args map[string]interface{}) (*response, error) {
	if d.proc == nil {
		return nil, eris.Errorf("python isn't running (%s called before prepare or after python exited)", op)
	}

	req := request{
		ID:   nanoid.New(),
		Op:   op,
		Args: args,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to encode %s request", op)
	}

	_, err = d.proc.stdin.Write(append(data, '\n'))
	if err != nil {
		return nil, d.exitError(ctx, eris.Wrapf(err, "failed to send %s request", op))
	}

	line, err := d.proc.stdout.ReadBytes('\n')
	if err != nil {
		return nil, d.exitError(ctx, eris.Wrapf(err, "no response to %s request", op))
	}

	var resp response
	err = json.Unmarshal(line, &resp)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to decode response to %s: %s", op, line)
	}

	if resp.ID != req.ID {
		return nil, eris.Errorf("response id %s does not match request %s", resp.ID, req.ID)
	}

	return &resp, nil
}

// exitError reaps the interpreter and explains why it stopped responding. Later calls fail until the
// next Prepare.
func (d *Driver) exitError(ctx context.Context, err error) error {
	_ = d.stop(true)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return eris.Wrap(ctxErr, "python was interrupted")
	}

	return eris.Wrap(err, "python exited unexpectedly")
}

func (d *Driver) stop(kill bool) error {
	proc := d.proc
	if proc == nil {
		return nil
	}
	d.proc = nil

	proc.stdin.Close()
	if kill {
		_ = proc.cmd.Process.Kill()
	}

	<-proc.stderrDone
	err := proc.cmd.Wait()
	if kill || err == nil {
		return nil
	}

	return eris.Wrap(err, "python failed")
}

func remoteError(op string, resp *response) error {
	return &RemoteError{
		Op:        op,
		Message:   resp.Error,
		Traceback: resp.Trace,
	}
}
