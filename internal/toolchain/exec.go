package toolchain

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/shlex"

	"kiln/internal/platform"
)

var commandContext = exec.CommandContext

// execTool is an external program resolved from a command line.
type execTool struct {
	argv []string
}

func newExecTool(commandLine string) (execTool, error) {
	argv, err := shlex.Split(commandLine)
	if err != nil {
		return execTool{}, fmt.Errorf("parse command line: %w", err)
	}
	if len(argv) == 0 {
		return execTool{}, errors.New("empty command line")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return execTool{}, fmt.Errorf("resolve %s: %w", argv[0], err)
	}
	argv[0] = path
	return execTool{argv: argv}, nil
}

func (t execTool) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	argv := append(append([]string(nil), t.argv[1:]...), args...)
	cmd := commandContext(ctx, t.argv[0], argv...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", t.argv[0], strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

type execTextureCodec struct {
	tool execTool
}

type textureDescription struct {
	TailBase int   `cbor:"tail_base"`
	MipSizes []int `cbor:"mip_sizes"`
}

func (c execTextureCodec) NewCooker(ctx context.Context, format string, width, height, mips int, flags TextureFlags) (TextureCooker, error) {
	out, err := c.tool.run(ctx, nil, "texture-describe", format,
		strconv.Itoa(width), strconv.Itoa(height), strconv.Itoa(mips), strconv.FormatUint(uint64(flags), 10))
	if err != nil {
		return nil, err
	}
	var desc textureDescription
	if err := cbor.Unmarshal(out, &desc); err != nil {
		return nil, fmt.Errorf("texture-describe output: %w", err)
	}
	if desc.TailBase < 0 || desc.TailBase >= max(1, mips) {
		return nil, fmt.Errorf("texture-describe: tail base %d outside %d mips", desc.TailBase, mips)
	}
	return &execTextureCooker{tool: c.tool, format: format, width: width, height: height, desc: desc}, nil
}

type execTextureCooker struct {
	tool   execTool
	format string
	width  int
	height int
	desc   textureDescription
}

func (c *execTextureCooker) MipTailBase() int { return c.desc.TailBase }

func (c *execTextureCooker) MipSize(level int) int {
	if level < 0 || level >= len(c.desc.MipSizes) {
		return 0
	}
	return c.desc.MipSizes[level]
}

func (c *execTextureCooker) CookMip(ctx context.Context, level int, src, dst []byte, rowPitch int) error {
	out, err := c.tool.run(ctx, src, "texture-mip", c.format, strconv.Itoa(c.width), strconv.Itoa(c.height),
		strconv.Itoa(level), strconv.Itoa(rowPitch), strconv.Itoa(len(dst)))
	if err != nil {
		return err
	}
	if len(out) > len(dst) {
		return fmt.Errorf("texture-mip level %d: %d bytes exceed cooked size %d", level, len(out), len(dst))
	}
	copy(dst, out)
	return nil
}

func (c *execTextureCooker) CookMipTail(ctx context.Context, tailBase int, mips [][]byte) ([]byte, error) {
	payload, err := cbor.Marshal(mips)
	if err != nil {
		return nil, err
	}
	return c.tool.run(ctx, payload, "texture-tail", c.format, strconv.Itoa(c.width), strconv.Itoa(c.height), strconv.Itoa(tailBase))
}

type execMeshOptimizer struct {
	tool execTool
}

func (m execMeshOptimizer) Optimize(ctx context.Context, indices []uint16, triangles int) ([]uint16, error) {
	in := make([]byte, 2*len(indices))
	for i, idx := range indices {
		binary.LittleEndian.PutUint16(in[2*i:], idx)
	}
	out, err := m.tool.run(ctx, in, "mesh-optimize", strconv.Itoa(triangles))
	if err != nil {
		return nil, err
	}
	if len(out) != len(in) {
		return nil, fmt.Errorf("mesh-optimize returned %d bytes, expected %d", len(out), len(in))
	}
	result := make([]uint16, len(indices))
	for i := range result {
		result[i] = binary.LittleEndian.Uint16(out[2*i:])
	}
	return result, nil
}

type execSoundEncoder struct {
	tool execTool
}

func (s execSoundEncoder) Encode(ctx context.Context, raw []byte, target platform.ID) ([]byte, error) {
	return s.tool.run(ctx, raw, "sound-encode", string(target))
}

// ExecProgram returns the program an exec binding runs, for environment
// checks that run before binding.
func ExecProgram(value string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), bindingExec)
	if !ok {
		return "", false
	}
	argv, err := shlex.Split(rest)
	if err != nil || len(argv) == 0 {
		return "", false
	}
	return argv[0], true
}
