//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/docker/go-connections/nat"
	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"soilnet-ml/internal/artifact"
	"soilnet-ml/internal/types"
)

func startContainer(t *testing.T, req tc.ContainerRequest, port nat.Port) string {
	t.Helper()
	ctx := context.Background()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("mapped port %s: %v", port, err)
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func TestSmoke_TrainAnnouncesOverMQTT(t *testing.T) {
	port := nat.Port("1883/tcp")
	addr := startContainer(t, tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2",
		ExposedPorts: []string{string(port)},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForLog("mosquitto version").WithStartupTimeout(30 * time.Second),
	}, port)
	host, mappedPort := splitHostPort(t, addr)

	repoRoot := repoRootPath(t)
	trainBin := buildBinary(t, repoRoot, "./cmd/train", "soilnet-train")
	home := t.TempDir()
	writeReadings(t, filepath.Join(home, "in", "soil_readings.csv"), 3, 4)
	sqlitePath := filepath.Join(home, "soilnet.db")

	run(t, trainBin, homeEnv(home,
		"MQTT_BROKER="+host,
		"MQTT_PORT="+mappedPort,
		"MQTT_TOPIC=soilnet/test/metrics",
		"SQLITE_PATH="+sqlitePath,
	))

	// The announcement is retained, so a late subscriber still receives it.
	got := make(chan types.TrainingRun, 1)
	opts := paho.NewClientOptions().
		AddBroker("tcp://" + addr).
		SetClientID("soilnet-e2e").
		SetConnectTimeout(10 * time.Second)
	client := paho.NewClient(opts)
	if tok := client.Connect(); !tok.WaitTimeout(10*time.Second) || tok.Error() != nil {
		t.Fatalf("connect subscriber: %v", tok.Error())
	}
	defer client.Disconnect(250)

	tok := client.Subscribe("soilnet/test/metrics", 1, func(_ paho.Client, msg paho.Message) {
		var r types.TrainingRun
		if err := json.Unmarshal(msg.Payload(), &r); err == nil {
			select {
			case got <- r:
			default:
			}
		}
	})
	if !tok.WaitTimeout(10*time.Second) || tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}

	select {
	case r := <-got:
		if r.Status != types.RunSucceeded || r.TrainingSamples != 9 || r.ID == "" {
			t.Fatalf("announced run = %+v", r)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no retained announcement received")
	}
}

func TestSmoke_TrainFromClickHouse(t *testing.T) {
	port := nat.Port("9000/tcp")
	addr := startContainer(t, tc.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.8",
		ExposedPorts: []string{string(port), "8123/tcp"},
		Env: map[string]string{
			"CLICKHOUSE_DB":       "soilnet",
			"CLICKHOUSE_USER":     "soil",
			"CLICKHOUSE_PASSWORD": "soil",
		},
		WaitingFor: wait.ForHTTP("/ping").WithPort("8123/tcp").WithStartupTimeout(60 * time.Second),
	}, port)

	seedClickHouse(t, addr)

	repoRoot := repoRootPath(t)
	trainBin := buildBinary(t, repoRoot, "./cmd/train", "soilnet-train")
	home := t.TempDir()

	run(t, trainBin, homeEnv(home,
		"DATA_SOURCE=clickhouse",
		"CLICKHOUSE_ADDR="+addr,
		"CLICKHOUSE_DB=soilnet",
		"CLICKHOUSE_USER=soil",
		"CLICKHOUSE_PASS=soil",
		"CLICKHOUSE_TABLE=soil_readings",
	))

	m, err := artifact.LoadMetrics(filepath.Join(home, "out", "metrics.json"))
	if err != nil {
		t.Fatalf("load metrics: %v", err)
	}
	if m.TrainingSamples != 6 {
		t.Errorf("training_samples = %d, want 6", m.TrainingSamples)
	}
	if want := "clickhouse://" + addr + "/soilnet.soil_readings"; m.DataPath != want {
		t.Errorf("data_path = %q, want %q", m.DataPath, want)
	}
}

// seedClickHouse creates soil_readings with two nodes of four readings each.
func seedClickHouse(t *testing.T, addr string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{Database: "soilnet", Username: "soil", Password: "soil"},
	})
	if err != nil {
		t.Fatalf("open clickhouse: %v", err)
	}
	defer conn.Close()

	if err := conn.Exec(ctx, `CREATE TABLE soil_readings (
		node_id String,
		createdAt DateTime64(3, 'UTC'),
		humidity_percent Float32,
		raw_value UInt16,
		rssi Int16,
		voltage Nullable(Float32),
		sampling_interval UInt32
	) ENGINE = MergeTree ORDER BY (node_id, createdAt)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	batch, err := conn.PrepareBatch(ctx, "INSERT INTO soil_readings")
	if err != nil {
		t.Fatalf("prepare batch: %v", err)
	}
	t0 := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)
	for n := range 2 {
		for i := range 4 {
			voltage := float32(3.7)
			if err := batch.Append(
				fmt.Sprintf("node-%d", n),
				t0.Add(time.Duration(i)*time.Hour),
				float32(30+10*n+2*i),
				uint16(2000+i),
				int16(-60-n),
				&voltage,
				uint32(3600),
			); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
	}
	if err := batch.Send(); err != nil {
		t.Fatalf("send batch: %v", err)
	}
}
