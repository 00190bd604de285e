package celengine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var envCache = sync.Map{}
var programCache = sync.Map{}

// compiles collapses concurrent compilation of the same program.
var compiles singleflight.Group

var (
	programHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "cel_program_cache_hits_total"})
	programMiss = prometheus.NewCounter(prometheus.CounterOpts{Name: "cel_program_cache_miss_total"})
)

func init() {
	prometheus.MustRegister(programHits, programMiss)
}

// envKey identifies the declaration shape of attrs: variable names plus the
// CEL type chosen for each.
func envKey(attrs map[string]any) string {
	parts := make([]string, 0, len(attrs))
	for k, v := range attrs {
		parts = append(parts, k+":"+celType(v).String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func GetOrBuildEnv(attrs map[string]any) (*cel.Env, error) {
	key := envKey(attrs)
	if v, ok := envCache.Load(key); ok {
		return v.(*cel.Env), nil
	}

	env, err := BuildCelEnvFromAttributes(attrs)
	if err == nil {
		envCache.Store(key, env)
	}

	return env, err
}

func celType(val any) *cel.Type {
	switch v := val.(type) {
	case string:
		return cel.StringType
	case int, int32, int64:
		return cel.IntType
	case float32, float64:
		return cel.DoubleType
	case bool:
		return cel.BoolType
	case []any:
		if len(v) > 0 {
			if _, ok := v[0].(map[string]any); ok {
				return cel.ListType(cel.MapType(cel.StringType, cel.DynType))
			}
		}
		return cel.ListType(cel.DynType)
	case []string:
		return cel.ListType(cel.StringType)
	case []map[string]any:
		return cel.ListType(cel.MapType(cel.StringType, cel.DynType))
	case map[string]any:
		return cel.MapType(cel.StringType, cel.DynType)
	default:
		return cel.DynType
	}
}

func BuildCelEnvFromAttributes(attrs map[string]any) (*cel.Env, error) {
	opts := []cel.EnvOption{
		cel.CrossTypeNumericComparisons(true),
	}

	for key, val := range attrs {
		t := celType(val)
		if t == cel.DynType {
			zap.L().Debug("cel attribute declared as dyn", zap.String("key", key), zap.String("go_type", fmt.Sprintf("%T", val)))
		}
		opts = append(opts, cel.Variable(key, t))
	}

	return cel.NewEnv(opts...)
}

// StructToMap round-trips s through JSON so CEL sees plain maps and float64
// numbers.
func StructToMap(s any) map[string]any {
	if s == nil {
		return map[string]any{}
	}

	b, err := json.Marshal(s)
	if err != nil {
		zap.L().Debug("failed StructToMap Marshal", zap.Error(err))
		return map[string]any{}
	}

	var result map[string]any
	if err := json.Unmarshal(b, &result); err != nil {
		zap.L().Debug("failed StructToMap Unmarshal", zap.Error(err))
		return map[string]any{}
	}

	return result
}

func ValidateExpression(env *cel.Env, expr string) error {
	_, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	return nil
}

func program(env *cel.Env, expr string, shape string) (cel.Program, error) {
	cacheKey := shape + "|" + expr
	if v, ok := programCache.Load(cacheKey); ok {
		programHits.Inc()
		return v.(cel.Program), nil
	}
	programMiss.Inc()

	v, err, _ := compiles.Do(cacheKey, func() (any, error) {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, issues.Err()
		}

		prg, err := env.Program(ast)
		if err != nil {
			return nil, err
		}
		programCache.Store(cacheKey, prg)
		return prg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(cel.Program), nil
}

func Evaluate(env *cel.Env, expr string, attrs map[string]any) (bool, error) {
	val, err := EvaluateDynamic(env, expr, attrs)
	if err != nil {
		return false, err
	}

	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", val, val)
	}

	return b, nil
}

func EvaluateDynamic(env *cel.Env, expr string, attrs map[string]any) (any, error) {
	prg, err := program(env, expr, envKey(attrs))
	if err != nil {
		return nil, err
	}

	out, _, err := prg.Eval(attrs)
	if err != nil {
		return nil, err
	}

	return out.Value(), nil
}

// EvaluateAttrs builds (or reuses) the env for attrs and evaluates expr as a
// boolean.
func EvaluateAttrs(expr string, attrs map[string]any) (bool, error) {
	env, err := GetOrBuildEnv(attrs)
	if err != nil {
		return false, err
	}
	return Evaluate(env, expr, attrs)
}
