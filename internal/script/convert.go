package script

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/Shopify/go-lua"
	"github.com/tidwall/gjson"
)

func goToLua(L *lua.State, value any) {
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case []any:
		pushLuaArray(L, v)
	case map[string]any:
		pushLuaMap(L, v)
	case nil:
		L.PushNil()
	default:
		goToLua(L, normalizeJSON(v))
	}
}

// normalizeJSON reduces any JSON-encodable value to the generic
// map/slice/float64 form used by the script environments
func normalizeJSON(value any) any {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return gjson.ParseBytes(b).Value()
}

func pushLuaArray(L *lua.State, arr []any) {
	L.CreateTable(len(arr), 0)
	for i, item := range arr {
		goToLua(L, item)
		L.RawSetInt(-2, i+1)
	}
}

func pushLuaMap(L *lua.State, m map[string]any) {
	L.CreateTable(0, len(m))
	for k, val := range m {
		goToLua(L, val)
		L.SetField(-2, k)
	}
}

func luaNumberToGo(L *lua.State, index int) any {
	num, _ := L.ToNumber(index)
	if num == math.Trunc(num) && math.Abs(num) < 1<<53 {
		return int(num)
	}
	return num
}

func luaToGo(L *lua.State, index int) any {
	switch L.TypeOf(index) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return L.ToBoolean(index)
	case lua.TypeNumber:
		return luaNumberToGo(L, index)
	case lua.TypeString:
		s, _ := L.ToString(index)
		return s
	case lua.TypeTable:
		return luaTableToAny(L, L.AbsIndex(index))
	default:
		return nil
	}
}

// luaTableToAny converts a table at an absolute stack index. Tables whose
// keys are exactly 1..n become slices, everything else becomes a map
func luaTableToAny(L *lua.State, index int) any {
	count := 0
	isArray := true

	L.PushNil()
	for L.Next(index) {
		count++
		if L.TypeOf(-2) != lua.TypeNumber {
			isArray = false
		}
		L.Pop(1)
	}

	if isArray && count > 0 && L.RawLength(index) == count {
		return convertLuaArray(L, index, count)
	}

	result := make(map[string]any, count)
	L.PushNil()
	for L.Next(index) {
		var key string
		if L.TypeOf(-2) == lua.TypeString {
			key, _ = L.ToString(-2)
		} else {
			key = fmt.Sprintf("%v", luaToGo(L, -2))
		}
		result[key] = luaToGo(L, -1)
		L.Pop(1)
	}
	return result
}

func convertLuaArray(L *lua.State, index, length int) []any {
	arr := make([]any, length)
	for i := 1; i <= length; i++ {
		L.RawGetInt(index, i)
		arr[i-1] = luaToGo(L, -1)
		L.Pop(1)
	}
	return arr
}

// luaOptions reads an optional table argument as a string-keyed map
func luaOptions(L *lua.State, index int) map[string]any {
	if m, ok := luaToGo(L, index).(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
