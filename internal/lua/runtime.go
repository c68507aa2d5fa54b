package lua

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
)

// loadTimeout bounds how long a profile script may run.
const loadTimeout = time.Second

// Runtime evaluates Lua profile scripts in a sandboxed environment
type Runtime struct {
	logs []string
}

func NewRuntime() *Runtime {
	return &Runtime{logs: make([]string, 0)}
}

// LoadProfile runs the script at path and converts the table it returns,
// or the global `profile` table it defines, into a profile.
func (r *Runtime) LoadProfile(ctx context.Context, path string) (*models.Profile, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // Don't load any libraries by default
	})
	defer L.Close()
	L.SetContext(ctx)

	r.openSafeLibs(L)
	r.registerAPI(L)

	fn, err := L.LoadString(string(script))
	if err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, fmt.Errorf("profile script failed: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	if ret == lua.LNil {
		ret = L.GetGlobal("profile")
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("script must return or define a 'profile' table")
	}

	return tableToProfile(tbl)
}

// openSafeLibs loads only the safe standard libraries
func (r *Runtime) openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)

	// Remove base functions that reach the filesystem
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("print", lua.LNil) // Use log() instead

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

func (r *Runtime) registerAPI(L *lua.LState) {
	L.SetGlobal("log", L.NewFunction(r.luaLog))
	L.SetGlobal("getenv", L.NewFunction(luaGetenv))
}

// luaLog implements the log(message) API
func (r *Runtime) luaLog(L *lua.LState) int {
	message := L.CheckString(1)
	r.logs = append(r.logs, message)
	return 0
}

// luaGetenv implements the read-only getenv(name, default?) API
func luaGetenv(L *lua.LState) int {
	name := L.CheckString(1)
	if value, ok := os.LookupEnv(name); ok {
		L.Push(lua.LString(value))
		return 1
	}
	L.Push(L.Get(2))
	return 1
}

// GetLogs returns the messages logged by the last evaluated scripts
func (r *Runtime) GetLogs() []string {
	return r.logs
}

func tableToProfile(tbl *lua.LTable) (*models.Profile, error) {
	p := &models.Profile{
		Name:        lua.LVAsString(tbl.RawGetString("name")),
		Description: lua.LVAsString(tbl.RawGetString("description")),
		Extension:   lua.LVAsString(tbl.RawGetString("extension")),
	}

	var err error
	if p.Command, err = stringList(tbl, "command"); err != nil {
		return nil, err
	}

	syntax, ok := tbl.RawGetString("syntax").(*lua.LTable)
	if !ok {
		return p, nil
	}
	if p.Syntax.Keywords, err = stringList(syntax, "keywords"); err != nil {
		return nil, err
	}
	if p.Syntax.LineComments, err = stringList(syntax, "line_comments"); err != nil {
		return nil, err
	}
	if p.Syntax.Quotes, err = stringList(syntax, "quotes"); err != nil {
		return nil, err
	}
	if p.Syntax.RawQuotes, err = stringList(syntax, "raw_quotes"); err != nil {
		return nil, err
	}

	if blocks, ok := syntax.RawGetString("block_comments").(*lua.LTable); ok {
		for i := 1; i <= blocks.Len(); i++ {
			pair, ok := blocks.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("block_comments[%d] must be a table", i)
			}
			p.Syntax.BlockComments = append(p.Syntax.BlockComments, models.Delimiters{
				Open:  lua.LVAsString(pair.RawGetString("open")),
				Close: lua.LVAsString(pair.RawGetString("close")),
			})
		}
	}

	return p, nil
}

func stringList(tbl *lua.LTable, field string) ([]string, error) {
	v := tbl.RawGetString(field)
	if v == lua.LNil {
		return nil, nil
	}
	list, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s must be a list of strings", field)
	}

	out := make([]string, 0, list.Len())
	for i := 1; i <= list.Len(); i++ {
		s, ok := list.RawGetInt(i).(lua.LString)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string", field, i)
		}
		out = append(out, string(s))
	}
	return out, nil
}

// IsLuaProfile checks if a file is a Lua profile
func IsLuaProfile(path string) bool {
	return filepath.Ext(path) == ".lua"
}
