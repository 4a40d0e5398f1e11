package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

type (
	// LuaEnv provides a Lua script execution environment with state pooling
	LuaEnv struct {
		*compiler[*CompiledLua]
		statePool chan *lua.State
	}

	// CompiledLua represents a compiled Lua chunk
	CompiledLua struct {
		bytecode []byte
	}
)

const (
	luaCacheSize        = 4096
	luaStatePoolSize    = 10
	luaGlobalTableIndex = -2
	luaGlobalTableName  = "_G"
	luaChunkName        = "node"
	luaLoopIndex        = 1
	luaEnvUpValue       = 1
	luaSeparator        = "\n"
)

// Chunk locals, in argument order. The script body sees these and nothing
// else from the host
var luaChunkArgs = [...]string{
	"input", "loopData", "log", "http", "vars", "db", "json",
}

var (
	ErrLuaLoad      = errors.New("lua load error")
	ErrLuaExecution = errors.New("lua execution error")
)

var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

var _ Environment = (*LuaEnv)(nil)

// NewLuaEnv creates a new Lua script execution environment with a state pool
// for efficient script reuse
func NewLuaEnv() *LuaEnv {
	luaEnv := &LuaEnv{
		statePool: make(chan *lua.State, luaStatePoolSize),
	}
	luaEnv.compiler = newCompiler(luaCacheSize,
		func(script string) (*CompiledLua, error) {
			return luaEnv.compile(wrapLuaSource(script))
		},
	)
	return luaEnv
}

// Execute runs a node script. The loop-local object is passed as loopData
// and read back after the call, so in-place mutations are kept
func (e *LuaEnv) Execute(
	ctx context.Context, node *api.Node, input, loop any, caps *Capabilities,
) (any, any, error) {
	proc, err := e.Compile(node.Script)
	if err != nil {
		return nil, loop, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	L := e.getState()
	defer e.returnState(L)

	e.setupSandbox(L)
	if loop == nil {
		loop = map[string]any{}
	}
	goToLua(L, loop)

	err = L.Load(bytes.NewReader(proc.bytecode), luaChunkName, "b")
	if err != nil {
		return nil, loop, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}
	pushScope(L)
	lua.SetUpValue(L, -2, luaEnvUpValue)

	h := &luaHost{ctx: ctx, node: node, caps: caps}
	goToLua(L, input)
	L.PushValue(luaLoopIndex)
	h.pushLog(L)
	h.pushHTTP(L)
	h.pushVars(L)
	h.pushDB(L)
	pushJSON(L)

	if err := L.ProtectedCall(len(luaChunkArgs), 1, 0); err != nil {
		return nil, loop, fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}

	result := luaToGo(L, -1)
	return result, luaToGo(L, luaLoopIndex), nil
}

func wrapLuaSource(script string) string {
	return strings.Join([]string{
		"local " + strings.Join(luaChunkArgs[:], ", ") + " = ...",
		"local data = input",
		script,
	}, luaSeparator)
}

func (e *LuaEnv) compile(src string) (*CompiledLua, error) {
	L := lua.NewState()

	e.setupSandbox(L)

	if err := lua.LoadString(L, src); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, err
	}

	return &CompiledLua{
		bytecode: buf.Bytes(),
	}, nil
}

func (e *LuaEnv) setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
}

// pushScope pushes a new globals table holding the sandboxed globals. It
// becomes the chunk's _ENV, so globals a script assigns are dropped with
// the call instead of surviving in the pooled state
func pushScope(L *lua.State) {
	L.NewTable()
	L.PushGlobalTable()
	L.PushNil()
	for L.Next(-2) {
		L.PushValue(-2)
		L.PushValue(-2)
		L.RawSet(-6)
		L.Pop(1)
	}
	L.Pop(1)
	L.PushValue(-1)
	L.SetField(-2, luaGlobalTableName)
}

func (e *LuaEnv) getState() *lua.State {
	select {
	case L := <-e.statePool:
		return L
	default:
		return lua.NewState()
	}
}

func (e *LuaEnv) returnState(L *lua.State) {
	L.SetTop(0)

	select {
	case e.statePool <- L:
	default:
	}
}
