package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/opst/mlengine/pkg/automl"
	"github.com/opst/mlengine/pkg/configs/server"
	"github.com/opst/mlengine/pkg/engine"
	"github.com/opst/mlengine/pkg/explain"
)

type recorded struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

// fakeEngine answers with responses keyed by "METHOD /path".
type fakeEngine struct {
	mu        sync.Mutex
	responses map[string][]string
	requests  []recorded
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := recorded{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
	if b, _ := io.ReadAll(r.Body); len(b) != 0 {
		json.Unmarshal(b, &rec.Body)
	}
	f.requests = append(f.requests, rec)

	key := r.Method + " " + r.URL.Path
	queue := f.responses[key]
	if len(queue) == 0 {
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
		return
	}
	resp := queue[0]
	if 1 < len(queue) {
		f.responses[key] = queue[1:]
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(resp))
}

func start(t *testing.T, responses map[string][]string, options ...engine.Option) (*engine.Client, *fakeEngine) {
	t.Helper()
	fe := &fakeEngine{responses: responses}
	srv := httptest.NewServer(fe)
	t.Cleanup(srv.Close)

	c, err := engine.New(srv.URL+"/api", options...)
	if err != nil {
		t.Fatal(err)
	}
	return c, fe
}

func TestNew(t *testing.T) {
	if _, err := engine.New("ftp://example.com/api"); err == nil {
		t.Error("non http URL is accepted")
	}
}

func TestHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("ok is available", func(t *testing.T) {
		c, fe := start(t, map[string][]string{"GET /health": {`{"status":"ok"}`}})
		if !c.Available(ctx) {
			t.Error("not available")
		}
		if fe.requests[0].Path != "/health" {
			t.Errorf("path = %s", fe.requests[0].Path)
		}
	})

	t.Run("errors are reported as the error status", func(t *testing.T) {
		c, _ := start(t, map[string][]string{})
		h := c.Health(ctx)
		if h.Status != "error" || !strings.Contains(h.Message, "404") {
			t.Errorf("health = %+v", h)
		}
		if c.Available(ctx) {
			t.Error("available")
		}
	})
}

func TestAutoML(t *testing.T) {
	ctx := context.Background()
	c, fe := start(t, map[string][]string{
		"POST /api/automl/start":             {`{"job_id":"j1"}`},
		"GET /api/automl/jobs/j1/progress":   {`{"status":"running","progress":40,"current_algorithm":"ridge","algorithms_completed":2,"algorithms_total":5}`},
		"GET /api/automl/jobs/j1/results":    {`{"best_algorithm":"ridge","best_score":0.9,"best_metric":"r2","model_id":"m1","leaderboard":[{"rank":1,"algorithm":"ridge","score":0.9,"training_time":1.5}]}`},
		"POST /api/automl/jobs/j1/stop":      {`{"status":"stopped"}`},
		"POST /api/automl/cross_validate":    {`{"scores":[0.5,0.75]}`},
		"POST /api/training/start":           {`{"job_id":"t1"}`},
		"GET /api/training/jobs/t1/progress": {`{"status":"running"}`, `{"status":"completed"}`},
		"GET /api/training/jobs/t1/results":  {`{"model_id":"m2"}`},
	}, engine.WithPollInterval(time.Millisecond))

	id, err := c.StartAutoML(ctx, engine.AutoMLRequest{
		DatasetPath: "/data/ws/abc_iris.csv", TargetColumn: "species", ProblemType: "CLASSIFICATION", CVFolds: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "j1" {
		t.Errorf("job id = %s", id)
	}
	wantStart := map[string]any{
		"dataset_id": "abc_iris", "dataset_path": "/data/ws/abc_iris.csv", "target_column": "species",
		"problem_type": "classification", "cv_folds": 5.0, "use_feature_engineering": false, "scaling_method": "standard",
	}
	if diff := cmp.Diff(wantStart, fe.requests[0].Body); diff != "" {
		t.Errorf("start body (-want +got):\n%s", diff)
	}

	p, err := c.AutoMLProgress(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != engine.StatusRunning || *p.Progress != 40 || *p.AlgorithmsTotal != 5 || p.CurrentBestScore != nil {
		t.Errorf("progress = %+v", p)
	}

	r, err := c.AutoMLResults(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if r.ModelID != "m1" || len(r.Leaderboard) != 1 || r.Leaderboard[0].Algorithm != "ridge" {
		t.Errorf("results = %+v", r)
	}

	if err := c.StopAutoML(ctx, "j1"); err != nil {
		t.Fatal(err)
	}

	algo, _ := automl.Lookup(automl.Regression, "ridge")
	ds := automl.Dataset{Path: "/data/x.csv", TargetColumn: "y"}
	scores, err := c.CrossValidate(ctx, automl.CrossValidation{
		Algorithm: algo, ProblemType: automl.Regression, Dataset: ds, Folds: 3, Scoring: "r2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{0.5, 0.75}, scores); diff != "" {
		t.Errorf("scores (-want +got):\n%s", diff)
	}
	cv := fe.requests[len(fe.requests)-1].Body
	if cv["estimator"] != "Ridge" || cv["cv_folds"] != 3.0 || cv["scoring"] != "r2" {
		t.Errorf("cross validate body = %v", cv)
	}

	model, err := c.Train(ctx, automl.Training{Algorithm: algo, ProblemType: automl.Regression, Dataset: ds})
	if err != nil {
		t.Fatal(err)
	}
	if model != "m2" {
		t.Errorf("model = %s", model)
	}
}

func TestTrainFailure(t *testing.T) {
	c, _ := start(t, map[string][]string{
		"POST /api/training/start":           {`{"job_id":"t1"}`},
		"GET /api/training/jobs/t1/progress": {`{"status":"failed","error_message":"boom"}`},
	})
	_, err := c.Train(context.Background(), automl.Training{Algorithm: automl.Algorithm{Key: "linear"}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v", err)
	}
}

func TestEngineError(t *testing.T) {
	c, _ := start(t, map[string][]string{})
	_, err := c.Model(context.Background(), "nope")

	var ee *engine.EngineError
	if !errors.As(err, &ee) || ee.Status != http.StatusNotFound || !strings.Contains(ee.Body, "not found") {
		t.Errorf("err = %v", err)
	}
	if !engine.IsNotFound(err) {
		t.Error("IsNotFound = false")
	}
}

func TestExplain(t *testing.T) {
	ctx := context.Background()

	t.Run("model and 2-d values", func(t *testing.T) {
		c, fe := start(t, map[string][]string{
			"GET /api/models/m1":     {`{"model_id":"m1","model_type":"XGBClassifier","feature_names":["a","b"],"problem_type":"classification"}`},
			"POST /api/explain/shap": {`{"values":[[0.1,0.2]]}`},
		})
		m, err := c.Model(ctx, "m1")
		if err != nil {
			t.Fatal(err)
		}
		want := explain.Model{ID: "m1", Type: "XGBClassifier", FeatureNames: []string{"a", "b"}, ProblemType: "classification"}
		if diff := cmp.Diff(want, m); diff != "" {
			t.Errorf("model (-want +got):\n%s", diff)
		}

		v, err := c.SHAPValues(ctx, explain.Request{
			ModelID: "m1", Explainer: explain.Kernel, Background: [][]any{{1.0, 2.0}}, Rows: [][]any{{3.0, 4.0}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(explain.Values{Matrix: [][]float64{{0.1, 0.2}}}, v); diff != "" {
			t.Errorf("values (-want +got):\n%s", diff)
		}
		body := fe.requests[1].Body
		if body["explainer"] != "kernel" || body["background_size"] != 1.0 {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("3-d values are per class", func(t *testing.T) {
		c, _ := start(t, map[string][]string{
			"POST /api/explain/shap": {`{"values":[[[0.1]],[[0.2]]]}`},
		})
		v, err := c.SHAPValues(ctx, explain.Request{Rows: [][]any{{1.0}}})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(explain.Values{PerClass: [][][]float64{{{0.1}}, {{0.2}}}}, v); diff != "" {
			t.Errorf("values (-want +got):\n%s", diff)
		}
	})

	t.Run("malformed values are errors", func(t *testing.T) {
		c, _ := start(t, map[string][]string{
			"POST /api/explain/shap": {`{"values":"nope"}`},
		})
		if _, err := c.SHAPValues(ctx, explain.Request{}); err == nil {
			t.Error("no error")
		}
	})

	for name, values := range map[string]string{
		"ragged rows":                    `[[0.1,0.2],[0.3]]`,
		"an empty row":                   `[[0.1,0.2],[]]`,
		"classes with different rows":    `[[[0.1],[0.2]],[[0.3]]]`,
		"classes with different columns": `[[[0.1,0.2]],[[0.3]]]`,
	} {
		t.Run("values with "+name+" are errors", func(t *testing.T) {
			c, _ := start(t, map[string][]string{
				"POST /api/explain/shap": {`{"values":` + values + `}`},
			})
			_, err := c.SHAPValues(ctx, explain.Request{Rows: [][]any{{1.0, 2.0}, {3.0, 4.0}}})
			if !errors.Is(err, explain.ErrMalformedValues) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestPredict(t *testing.T) {
	ctx := context.Background()
	c, fe := start(t, map[string][]string{
		"POST /api/predictions/realtime/m1": {`{"prediction":"setosa"}`},
		"POST /api/predictions/batch/m1":    {`{"predictions":["setosa","virginica"]}`},
	})

	got, err := c.Predict(ctx, "m1", map[string]any{"sepal": 5.1})
	if err != nil {
		t.Fatal(err)
	}
	if got["prediction"] != "setosa" {
		t.Errorf("prediction = %v", got)
	}
	if fe.requests[0].Body["sepal"] != 5.1 {
		t.Errorf("body = %v", fe.requests[0].Body)
	}

	if _, err := c.PredictBatch(ctx, "m1", []map[string]any{{"sepal": 5.1}, {"sepal": 6.3}}); err != nil {
		t.Fatal(err)
	}
	if rows, ok := fe.requests[1].Body["data"].([]any); !ok || len(rows) != 2 {
		t.Errorf("batch body = %v", fe.requests[1].Body)
	}
}

func TestSigning(t *testing.T) {
	key := []byte("secret")
	c, fe := start(t, map[string][]string{"GET /health": {`{"status":"ok"}`}}, engine.WithSigningKey(key))
	c.Health(context.Background())

	auth := fe.requests[0].Auth
	tok, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		t.Fatalf("authorization = %q", auth)
	}
	claims := jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	); err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "mlengine" {
		t.Errorf("subject = %s", claims.Subject)
	}
	if d := claims.ExpiresAt.Sub(claims.IssuedAt.Time); d != 5*time.Minute {
		t.Errorf("lifetime = %s", d)
	}

	t.Run("no token without a key", func(t *testing.T) {
		c, fe := start(t, map[string][]string{"GET /health": {`{"status":"ok"}`}})
		c.Health(context.Background())
		if fe.requests[0].Auth != "" {
			t.Errorf("authorization = %q", fe.requests[0].Auth)
		}
	})
}

func TestRateLimit(t *testing.T) {
	c, fe := start(t, map[string][]string{"GET /health": {`{"status":"ok"}`}}, engine.WithRateLimit(1, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.Health(ctx)
	if h := c.Health(ctx); h.Status != "error" {
		t.Errorf("second request within the burst window: %+v", h)
	}
	if len(fe.requests) != 1 {
		t.Errorf("requests = %d", len(fe.requests))
	}
}

func TestFromConfig(t *testing.T) {
	fe := &fakeEngine{responses: map[string][]string{"GET /health": {`{"status":"ok"}`}}}
	srv := httptest.NewServer(fe)
	t.Cleanup(srv.Close)

	conf, err := server.Unmarshal([]byte(`
database:
  url: postgres://mlengine@db:5432/mlengine
storage:
  dataRoot: /data/uploads
engine:
  url: ` + srv.URL + `/api/
  signingKey: s3cr3t
`))
	if err != nil {
		t.Fatal(err)
	}

	c, err := engine.FromConfig(conf.Engine())
	if err != nil {
		t.Fatal(err)
	}
	if !c.Available(context.Background()) {
		t.Fatal("not available")
	}
	if auth := fe.requests[0].Auth; !strings.HasPrefix(auth, "Bearer ") {
		t.Errorf("authorization = %q", auth)
	}
}
