package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/tidwall/gjson"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

// luaHost builds the capability tables handed to one Lua chunk call
type luaHost struct {
	ctx  context.Context
	node *api.Node
	caps *Capabilities
}

const httpErrorStatus = 400

func (h *luaHost) pushLog(L *lua.State) {
	info := func(L *lua.State) int {
		if h.caps.Log != nil {
			h.caps.Log.Info(h.ctx, h.node, luaLogMessage(L))
		}
		return 0
	}
	lua.NewLibrary(L, []lua.RegistryFunction{
		{Name: "info", Function: info},
		{Name: "log", Function: info},
		{Name: "error", Function: func(L *lua.State) int {
			if h.caps.Log != nil {
				h.caps.Log.Error(h.ctx, h.node, luaLogMessage(L))
			}
			return 0
		}},
	})
}

func (h *luaHost) pushHTTP(L *lua.State) {
	lua.NewLibrary(L, []lua.RegistryFunction{
		{Name: "get", Function: func(L *lua.State) int {
			url := lua.CheckString(L, 1)
			return h.doHTTP(L, http.MethodGet, url, nil, luaOptions(L, 2))
		}},
		{Name: "post", Function: func(L *lua.State) int {
			url := lua.CheckString(L, 1)
			return h.doHTTP(L, http.MethodPost, url,
				luaToGo(L, 2), luaOptions(L, 3),
			)
		}},
		{Name: "request", Function: func(L *lua.State) int {
			opts := luaOptions(L, 1)
			method, _ := opts["method"].(string)
			if method == "" {
				method = http.MethodGet
			}
			url, _ := opts["url"].(string)
			headers, _ := opts["headers"].(map[string]any)
			return h.doHTTP(L, strings.ToUpper(method), url,
				opts["body"], headers,
			)
		}},
	})
}

func (h *luaHost) doHTTP(
	L *lua.State, method, url string, body any, headers map[string]any,
) int {
	if h.caps.HTTP == nil {
		luaRaise(L, fmt.Errorf("%w: http", ErrCapability))
	}

	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			luaRaise(L, err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(h.ctx, method, url, reader)
	if err != nil {
		luaRaise(L, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, fmt.Sprintf("%v", v))
	}

	resp, err := h.caps.HTTP.Do(req)
	if err != nil {
		luaRaise(L, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		luaRaise(L, err)
	}
	if resp.StatusCode >= httpErrorStatus {
		luaRaise(L, fmt.Errorf("request failed with status code %d",
			resp.StatusCode,
		))
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		respHeaders[strings.ToLower(k)] = resp.Header.Get(k)
	}

	var data any
	if gjson.ValidBytes(raw) {
		data = gjson.ParseBytes(raw).Value()
	}

	goToLua(L, map[string]any{
		"status":  resp.StatusCode,
		"headers": respHeaders,
		"body":    string(raw),
		"data":    data,
	})
	return 1
}

func (h *luaHost) pushVars(L *lua.State) {
	store := func(L *lua.State) {
		if h.caps.Vars == nil {
			luaRaise(L, fmt.Errorf("%w: vars", ErrCapability))
		}
	}
	lua.NewLibrary(L, []lua.RegistryFunction{
		{Name: "get", Function: func(L *lua.State) int {
			store(L)
			v, _, err := h.caps.Vars.Get(h.ctx, lua.CheckString(L, 1))
			if err != nil {
				luaRaise(L, err)
			}
			goToLua(L, v)
			return 1
		}},
		{Name: "set", Function: func(L *lua.State) int {
			store(L)
			key := lua.CheckString(L, 1)
			if err := h.caps.Vars.Set(h.ctx, key, luaToGo(L, 2)); err != nil {
				luaRaise(L, err)
			}
			return 0
		}},
		{Name: "delete", Function: func(L *lua.State) int {
			store(L)
			if err := h.caps.Vars.Delete(
				h.ctx, lua.CheckString(L, 1),
			); err != nil {
				luaRaise(L, err)
			}
			return 0
		}},
		{Name: "has", Function: func(L *lua.State) int {
			store(L)
			ok, err := h.caps.Vars.Has(h.ctx, lua.CheckString(L, 1))
			if err != nil {
				luaRaise(L, err)
			}
			L.PushBoolean(ok)
			return 1
		}},
		{Name: "all", Function: func(L *lua.State) int {
			store(L)
			all, err := h.caps.Vars.All(h.ctx)
			if err != nil {
				luaRaise(L, err)
			}
			goToLua(L, all)
			return 1
		}},
		{Name: "clear", Function: func(L *lua.State) int {
			store(L)
			if err := h.caps.Vars.Clear(h.ctx); err != nil {
				luaRaise(L, err)
			}
			return 0
		}},
	})
}

func (h *luaHost) pushDB(L *lua.State) {
	type collFunc func(ctx context.Context, name, coll string, q any) (
		any, error,
	)
	type updateFunc func(ctx context.Context, name, coll string, q, d any) (
		any, error,
	)

	db := func(L *lua.State) Database {
		if h.caps.DB == nil {
			luaRaise(L, fmt.Errorf("%w: db", ErrCapability))
		}
		return h.caps.DB
	}
	coll := func(get func(Database) collFunc) lua.Function {
		return func(L *lua.State) int {
			fn := get(db(L))
			res, err := fn(h.ctx,
				lua.CheckString(L, 1), lua.CheckString(L, 2), luaToGo(L, 3),
			)
			return luaResult(L, res, err)
		}
	}
	update := func(get func(Database) updateFunc) lua.Function {
		return func(L *lua.State) int {
			fn := get(db(L))
			res, err := fn(h.ctx,
				lua.CheckString(L, 1), lua.CheckString(L, 2),
				luaToGo(L, 3), luaToGo(L, 4),
			)
			return luaResult(L, res, err)
		}
	}

	lua.NewLibrary(L, []lua.RegistryFunction{
		{Name: "query", Function: func(L *lua.State) int {
			res, err := db(L).Query(h.ctx,
				lua.CheckString(L, 1),
				api.Operation(lua.CheckString(L, 2)),
				luaOptions(L, 3),
			)
			return luaResult(L, res, err)
		}},
		{Name: "find", Function: coll(func(d Database) collFunc {
			return d.Find
		})},
		{Name: "findOne", Function: coll(func(d Database) collFunc {
			return d.FindOne
		})},
		{Name: "insert", Function: coll(func(d Database) collFunc {
			return d.Insert
		})},
		{Name: "insertMany", Function: coll(func(d Database) collFunc {
			return d.InsertMany
		})},
		{Name: "update", Function: update(func(d Database) updateFunc {
			return d.Update
		})},
		{Name: "updateMany", Function: update(func(d Database) updateFunc {
			return d.UpdateMany
		})},
		{Name: "delete", Function: coll(func(d Database) collFunc {
			return d.Delete
		})},
		{Name: "deleteMany", Function: coll(func(d Database) collFunc {
			return d.DeleteMany
		})},
		{Name: "count", Function: coll(func(d Database) collFunc {
			return d.Count
		})},
		{Name: "findSQL", Function: func(L *lua.State) int {
			params, _ := luaToGo(L, 3).([]any)
			res, err := db(L).FindSQL(h.ctx,
				lua.CheckString(L, 1), lua.CheckString(L, 2), params,
			)
			return luaResult(L, res, err)
		}},
		{Name: "insertSQL", Function: func(L *lua.State) int {
			res, err := db(L).InsertSQL(h.ctx,
				lua.CheckString(L, 1), luaOptions(L, 2),
			)
			return luaResult(L, res, err)
		}},
		{Name: "getConnection", Function: func(L *lua.State) int {
			conn, ok := db(L).Connection(lua.CheckString(L, 1))
			if !ok {
				L.PushNil()
				return 1
			}
			goToLua(L, conn)
			return 1
		}},
		{Name: "connections", Function: func(L *lua.State) int {
			goToLua(L, db(L).Connections())
			return 1
		}},
	})
}

func pushJSON(L *lua.State) {
	lua.NewLibrary(L, []lua.RegistryFunction{
		{Name: "encode", Function: func(L *lua.State) int {
			b, err := json.Marshal(luaToGo(L, 1))
			if err != nil {
				luaRaise(L, err)
			}
			L.PushString(string(b))
			return 1
		}},
		{Name: "decode", Function: func(L *lua.State) int {
			s := lua.CheckString(L, 1)
			if !gjson.Valid(s) {
				lua.Errorf(L, "invalid JSON")
			}
			goToLua(L, gjson.Parse(s).Value())
			return 1
		}},
	})
}

func luaResult(L *lua.State, res any, err error) int {
	if err != nil {
		luaRaise(L, err)
	}
	goToLua(L, res)
	return 1
}

func luaRaise(L *lua.State, err error) {
	lua.Errorf(L, "%s", err.Error())
}

// luaLogMessage joins every argument with spaces, JSON-encoding tables
func luaLogMessage(L *lua.State) string {
	n := L.Top()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		switch v := luaToGo(L, i).(type) {
		case nil:
			parts = append(parts, "nil")
		case map[string]any, []any:
			b, _ := json.Marshal(v)
			parts = append(parts, string(b))
		default:
			parts = append(parts, fmt.Sprintf("%v", v))
		}
	}
	return strings.Join(parts, " ")
}
