package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/storaged/internal/db"
)

// EvalStrings runs a Lua script via EVALSHA, falling back to EVAL on NOSCRIPT.
// Error replies raised by the script become *db.ScriptError.
func (s *Store) EvalStrings(ctx context.Context, script *db.Script, keys, args []string) ([]string, error) {
	res := s.lua(script).Exec(ctx, s.client, keys, args)
	out, err := res.AsStrSlice()
	if err != nil {
		if re, ok := rueidis.IsRedisErr(err); ok {
			return nil, db.ParseScriptError(script.Name, re.Error())
		}
		return nil, &db.Error{Op: db.OpEval, Err: err}
	}
	return out, nil
}

func (s *Store) lua(script *db.Script) *rueidis.Lua {
	if l, ok := s.scripts.Load(script.Name); ok {
		return l.(*rueidis.Lua) //nolint:forcetypeassert // only *rueidis.Lua is stored
	}
	l, _ := s.scripts.LoadOrStore(script.Name, rueidis.NewLuaScript(script.Source))
	return l.(*rueidis.Lua) //nolint:forcetypeassert // only *rueidis.Lua is stored
}
