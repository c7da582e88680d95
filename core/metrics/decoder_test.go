package metrics_test

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/homebattery/core/factory"
	metrics "github.com/kilianp07/homebattery/core/metrics"
)

// The sinks block must decode the same from YAML and JSON files.
func TestConfigDecodeYAMLAndJSON(t *testing.T) {
	yml := `prometheus_port: "9100"
sinks:
  - type: prometheus
  - type: influx
    conf:
      url: http://influx:8086
      bucket: battery
`
	var fromYAML metrics.Config
	if err := yaml.Unmarshal([]byte(yml), &fromYAML); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	js := `{"prometheus_port":"9100","sinks":[{"type":"prometheus"},{"type":"influx","conf":{"url":"http://influx:8086","bucket":"battery"}}]}`
	var fromJSON metrics.Config
	if err := json.Unmarshal([]byte(js), &fromJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	for name, cfg := range map[string]metrics.Config{"yaml": fromYAML, "json": fromJSON} {
		if len(cfg.Sinks) != 2 || cfg.Sinks[1].Type != "influx" {
			t.Fatalf("%s: unexpected sinks %+v", name, cfg.Sinks)
		}
		var influx struct {
			URL    string `json:"url"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(cfg.Sinks[1].Conf, &influx); err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if influx.Bucket != "battery" || influx.URL != "http://influx:8086" {
			t.Fatalf("%s: unexpected conf %+v", name, influx)
		}
	}
}
