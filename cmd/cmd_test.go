// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd_test

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/appstream-charms/cmd"
)

// testCommand is used by several different tests.
type testCommand struct {
	name   string
	option string
	out    cmd.Output
}

func (c *testCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:        c.name,
		Args:        "<something>",
		Purpose:     c.name + " the thing",
		Doc:         c.name + "-doc",
		Intersperse: true,
	}
}

func (c *testCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.option, "option", "", "option-doc")
	c.out.AddFlags(f, "yaml", cmd.DefaultFormatters)
}

func (c *testCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

func (c *testCommand) Run(ctx *cmd.Context) error {
	switch c.option {
	case "error":
		return errors.New("BAM!")
	case "silent-error":
		return cmd.ErrSilent
	case "echo":
		_, err := io.Copy(ctx.Stdout, ctx.Stdin)
		return err
	case "value":
		return c.out.Write(ctx, map[string]string{"name": c.name})
	default:
		fmt.Fprintln(ctx.Stdout, c.option)
	}
	return nil
}

type cmdSuite struct {
	testing.IsolationSuite

	ctx *cmd.Context
}

var _ = gc.Suite(&cmdSuite{})

func (s *cmdSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.ctx = &cmd.Context{
		Dir:    c.MkDir(),
		Stdin:  bytes.NewBufferString("hello\n"),
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	}
}

func (s *cmdSuite) stdout() string {
	return s.ctx.Stdout.(*bytes.Buffer).String()
}

func (s *cmdSuite) stderr() string {
	return s.ctx.Stderr.(*bytes.Buffer).String()
}

func (s *cmdSuite) newSuper() *cmd.SuperCommand {
	super := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "tool",
		Purpose: "test things",
		Version: "1.2.3",
	})
	super.Register(&testCommand{name: "verb"})
	super.Register(&testCommand{name: "noun"})
	return super
}

func (s *cmdSuite) TestMainSuccess(c *gc.C) {
	code := cmd.Main(&testCommand{name: "verb"}, s.ctx, []string{"--option", "success!"})
	c.Check(code, gc.Equals, 0)
	c.Check(s.stdout(), gc.Equals, "success!\n")
}

func (s *cmdSuite) TestMainInterspersed(c *gc.C) {
	code := cmd.Main(&testCommand{name: "verb"}, s.ctx, []string{"--option", "echo"})
	c.Check(code, gc.Equals, 0)
	c.Check(s.stdout(), gc.Equals, "hello\n")
}

func (s *cmdSuite) TestMainRunError(c *gc.C) {
	code := cmd.Main(&testCommand{name: "verb"}, s.ctx, []string{"--option", "error"})
	c.Check(code, gc.Equals, 1)
	c.Check(s.stderr(), gc.Equals, "ERROR BAM!\n")
}

func (s *cmdSuite) TestMainSilentError(c *gc.C) {
	code := cmd.Main(&testCommand{name: "verb"}, s.ctx, []string{"--option", "silent-error"})
	c.Check(code, gc.Equals, 1)
	c.Check(s.stderr(), gc.Equals, "")
}

func (s *cmdSuite) TestMainUsageError(c *gc.C) {
	code := cmd.Main(&testCommand{name: "verb"}, s.ctx, []string{"--unknown"})
	c.Check(code, gc.Equals, 2)
	c.Check(s.stderr(), gc.Matches, "ERROR flag provided but not defined: -*unknown\n")

	s.ctx.Stderr = &bytes.Buffer{}
	code = cmd.Main(&testCommand{name: "verb"}, s.ctx, []string{"extra"})
	c.Check(code, gc.Equals, 2)
	c.Check(s.stderr(), gc.Equals, `ERROR unrecognized args: ["extra"]`+"\n")
}

func (s *cmdSuite) TestHelp(c *gc.C) {
	code := cmd.Main(&testCommand{name: "verb"}, s.ctx, []string{"--help"})
	c.Check(code, gc.Equals, 0)
	c.Check(s.stdout(), jc.HasPrefix, "usage: verb [options] <something>\npurpose: verb the thing\n\noptions:\n")
	c.Check(s.stdout(), jc.Contains, "option-doc")
	c.Check(s.stdout(), jc.HasSuffix, "\nverb-doc\n")
}

func (s *cmdSuite) TestSuperCommand(c *gc.C) {
	code := s.newSuper().Main(s.ctx, []string{"noun", "--option", "picked"})
	c.Check(code, gc.Equals, 0)
	c.Check(s.stdout(), gc.Equals, "picked\n")
}

func (s *cmdSuite) TestSuperCommandUnknown(c *gc.C) {
	code := s.newSuper().Main(s.ctx, []string{"adjective"})
	c.Check(code, gc.Equals, 2)
	c.Check(s.stderr(), gc.Equals, "ERROR unrecognized command: tool adjective\n")
}

func (s *cmdSuite) TestSuperCommandHelp(c *gc.C) {
	code := s.newSuper().Main(s.ctx, []string{"--help"})
	c.Check(code, gc.Equals, 0)
	c.Check(s.stdout(), gc.Equals, `
usage: tool <command> ...
purpose: test things

commands:
    noun - noun the thing
    verb - verb the thing
`[1:])
}

func (s *cmdSuite) TestSuperCommandSubcommandHelp(c *gc.C) {
	code := s.newSuper().Main(s.ctx, []string{"verb", "--help"})
	c.Check(code, gc.Equals, 0)
	c.Check(s.stdout(), jc.HasPrefix, "usage: tool verb [options] <something>\n")
}

func (s *cmdSuite) TestSuperCommandVersion(c *gc.C) {
	code := s.newSuper().Main(s.ctx, []string{"version"})
	c.Check(code, gc.Equals, 0)
	c.Check(s.stdout(), gc.Equals, "1.2.3\n")
}

func (s *cmdSuite) TestRegisterTwice(c *gc.C) {
	super := s.newSuper()
	c.Assert(func() { super.Register(&testCommand{name: "verb"}) }, gc.PanicMatches, `command already registered: "verb"`)
}

func (s *cmdSuite) TestOutputFormats(c *gc.C) {
	code := cmd.Main(&testCommand{name: "verb"}, s.ctx, []string{"--option", "value"})
	c.Check(code, gc.Equals, 0)
	c.Check(s.stdout(), gc.Equals, "name: verb\n")

	s.ctx.Stdout = &bytes.Buffer{}
	code = cmd.Main(&testCommand{name: "verb"}, s.ctx, []string{"--option", "value", "--format", "json"})
	c.Check(code, gc.Equals, 0)
	c.Check(s.stdout(), gc.Equals, `{"name":"verb"}`+"\n")
}

func (s *cmdSuite) TestOutputFile(c *gc.C) {
	code := cmd.Main(&testCommand{name: "verb"}, s.ctx, []string{"--option", "value", "-o", "out.yaml"})
	c.Check(code, gc.Equals, 0)
	c.Check(s.stdout(), gc.Equals, "")

	data, err := os.ReadFile(filepath.Join(s.ctx.Dir, "out.yaml"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, "name: verb\n")
}

func (s *cmdSuite) TestUnknownFormat(c *gc.C) {
	code := cmd.Main(&testCommand{name: "verb"}, s.ctx, []string{"--format", "xml"})
	c.Check(code, gc.Equals, 2)
	c.Check(s.stderr(), gc.Matches, `ERROR invalid value "xml" for flag -*format: unknown format "xml"\n`)
}

func (s *cmdSuite) TestAbsPath(c *gc.C) {
	c.Check(s.ctx.AbsPath("/etc/hosts"), gc.Equals, "/etc/hosts")
	c.Check(s.ctx.AbsPath("data"), gc.Equals, filepath.Join(s.ctx.Dir, "data"))
	c.Check(s.ctx.AbsPath(""), gc.Equals, "")
}
