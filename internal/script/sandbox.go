package script

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kimalale/tactical-workflow-manager/internal/vars"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

type (
	// Sandbox executes node scripts in the environment selected by the
	// node's language, handing each script only the fixed Capabilities
	Sandbox struct {
		envs map[string]Environment
		caps *Capabilities
	}

	// Environment is one embedded script language
	Environment interface {
		// Validate checks if a script is syntactically valid
		Validate(script string) error

		// Execute runs a node script against its input and loop-local
		// state, returning the result and the (possibly mutated) state
		Execute(
			ctx context.Context, node *api.Node, input, loop any,
			caps *Capabilities,
		) (any, any, error)
	}

	// Capabilities are the host services a script may call. Nil members
	// are unavailable and fail when called
	Capabilities struct {
		Log  Logger
		HTTP *http.Client
		Vars vars.Store
		DB   Database
	}

	// Logger receives script log output
	Logger interface {
		Info(ctx context.Context, node *api.Node, msg string)
		Error(ctx context.Context, node *api.Node, msg string)
	}

	// Database is the script-facing database gateway proxy
	Database interface {
		Query(
			ctx context.Context, name string, op api.Operation,
			opts api.DatabaseOptions,
		) (any, error)
		Find(ctx context.Context, name, coll string, query any) (any, error)
		FindOne(
			ctx context.Context, name, coll string, query any,
		) (any, error)
		Insert(ctx context.Context, name, coll string, data any) (any, error)
		InsertMany(
			ctx context.Context, name, coll string, data any,
		) (any, error)
		Update(
			ctx context.Context, name, coll string, query, data any,
		) (any, error)
		UpdateMany(
			ctx context.Context, name, coll string, query, data any,
		) (any, error)
		Delete(ctx context.Context, name, coll string, query any) (any, error)
		DeleteMany(
			ctx context.Context, name, coll string, query any,
		) (any, error)
		Count(ctx context.Context, name, coll string, query any) (any, error)
		FindSQL(
			ctx context.Context, name, sql string, params []any,
		) (any, error)
		InsertSQL(
			ctx context.Context, name string, opts api.DatabaseOptions,
		) (any, error)
		Connection(name string) (api.ConnectionSummary, bool)
		Connections() []api.ConnectionSummary
	}
)

var (
	ErrScript              = errors.New("script error")
	ErrUnsupportedLanguage = api.ErrInvalidLanguage
	ErrCapability          = errors.New("capability unavailable")
)

// NewSandbox creates a sandbox with the Lua, gjson and Ale environments
func NewSandbox(caps Capabilities) *Sandbox {
	return &Sandbox{
		envs: map[string]Environment{
			api.ScriptLangLua:   NewLuaEnv(),
			api.ScriptLangGJSON: NewGJSONEnv(),
			api.ScriptLangAle:   NewAleEnv(),
		},
		caps: &caps,
	}
}

// Register installs or replaces the environment for a language
func (s *Sandbox) Register(language string, env Environment) {
	s.envs[language] = env
}

// Get returns the script environment for the given language
func (s *Sandbox) Get(language string) (Environment, error) {
	env, ok := s.envs[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	return env, nil
}

// Validate checks that a node's script compiles in its language
func (s *Sandbox) Validate(node *api.Node) error {
	env, err := s.Get(node.ScriptLanguage())
	if err != nil {
		return err
	}
	if isBlank(node.Script) {
		return nil
	}
	if err := env.Validate(node.Script); err != nil {
		return fmt.Errorf("%w: %w", ErrScript, err)
	}
	return nil
}

// Execute runs the node's script. Every failure, including a panic in the
// language runtime, is returned as an ErrScript error. A blank script
// completes with a nil result
func (s *Sandbox) Execute(
	ctx context.Context, node *api.Node, input, loop any,
) (any, any, error) {
	env, err := s.Get(node.ScriptLanguage())
	if err != nil {
		return nil, loop, fmt.Errorf("%w: %w", ErrScript, err)
	}
	if isBlank(node.Script) {
		return nil, loop, nil
	}

	type outcome struct {
		result any
		loop   any
	}
	res, err := catchPanic(ErrScript, func() (*outcome, error) {
		r, l, err := env.Execute(ctx, node, input, loop, s.caps)
		if err != nil {
			return nil, err
		}
		return &outcome{result: r, loop: l}, nil
	})
	if err != nil {
		if errors.Is(err, ErrScript) {
			return nil, loop, err
		}
		return nil, loop, fmt.Errorf("%w: %w", ErrScript, err)
	}
	return res.result, res.loop, nil
}

func isBlank(script string) bool {
	return strings.TrimSpace(script) == ""
}

func catchPanic[T any](baseErr error, fn func() (T, error)) (res T, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			err = fmt.Errorf("%w: %w", baseErr, e)
			return
		}
		err = fmt.Errorf("%w: %v", baseErr, r)
	}()
	return fn()
}
