package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonathan/bin-crew/internal/config"
	"github.com/jonathan/bin-crew/internal/schemas"
	"github.com/jonathan/bin-crew/internal/server"
	"github.com/jonathan/bin-crew/internal/store/memory"
	"github.com/jonathan/bin-crew/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-bincrew-cli"

// runCLI executes the root command in-process and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

// isolateEnv clears settings that would point the commands at real services.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "EMAIL_API_URL", "ZONES_FILE", "JWT_SECRET", "PORT", "TIME_ZONE"} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const seedYAML = `
employees:
  - id: E1
    name: Dana Reyes
    counties: [Fulton]
    pay_rate_per_job: 15
    active: true
jobs:
  - id: J1
    customer_name: Pat Lee
    address: {street: 1 Peachtree St, city: Atlanta, county: Fulton}
    scheduled_date: "2024-03-10"
    status: completed
    assigned_employee_id: E1
    has_required_photos: true
  - id: J2
    customer_name: Sam Ortiz
    address: {street: 9 Elm St, city: Atlanta, county: Fulton}
    scheduled_date: "2024-03-10"
    status: completed
    assigned_employee_id: E1
training_records:
  - employee_id: E1
    module_id: safety-basics
    score: 95
    passed: true
`

func TestNextDate_Biweekly(t *testing.T) {
	out, err := runCLI(t, "next-date", "Tuesday", "biweekly", "--from", "2024-03-12", "--count", "3")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2024-03-26  Tuesday", lines[0])
	assert.Equal(t, "2024-04-09  Tuesday", lines[1])
	assert.Equal(t, "2024-04-23  Tuesday", lines[2])
}

func TestNextDate_Weekly(t *testing.T) {
	out, err := runCLI(t, "next-date", "friday", "WEEKLY", "--from", "2024-03-12", "--count", "1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15  Friday\n", out)
}

func TestNextDate_InvalidInput(t *testing.T) {
	_, err := runCLI(t, "next-date", "Tuesday", "DAILY", "--from", "2024-03-12", "--count", "1")
	assert.Error(t, err)

	_, err = runCLI(t, "next-date", "Someday", "WEEKLY", "--from", "2024-03-12", "--count", "1")
	assert.Error(t, err)

	_, err = runCLI(t, "next-date", "Tuesday", "WEEKLY", "--from", "03/12/2024", "--count", "1")
	assert.Error(t, err)
}

func TestZones_ListsDefaultTable(t *testing.T) {
	out, err := runCLI(t, "zones")
	require.NoError(t, err)
	assert.Contains(t, out, "Metro Atlanta Core")
	assert.Contains(t, out, "North Metro")
	assert.Contains(t, out, "Fulton")
}

func TestZones_Coverage(t *testing.T) {
	out, err := runCLI(t, "zones", "coverage", "Cobb", "Marietta", "--zone", "North Metro")
	require.NoError(t, err)
	assert.Contains(t, out, "zones: North Metro")
	assert.Contains(t, out, "in coverage: true")

	out, err = runCLI(t, "zones", "coverage", "Bibb", "Macon", "--zone", "North Metro")
	require.NoError(t, err)
	assert.Contains(t, out, "zones: none")
	assert.Contains(t, out, "in coverage: false")
}

func TestOptimizeRoute_FromFile(t *testing.T) {
	path := writeFile(t, "stops.json", `{"stops": [
		{"job_id": "A", "address": {"street": "1 Main St", "city": "Atlanta", "latitude": 33.75, "longitude": -84.39}},
		{"job_id": "B", "address": {"street": "2 Main St", "city": "Atlanta", "latitude": 33.76, "longitude": -84.38}}
	]}`)

	out, err := runCLI(t, "optimize-route", path, "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "OPTIMIZED ROUTE")
	assert.Contains(t, out, "1 Main St")
	assert.Contains(t, out, "2 Main St")

	out, err = runCLI(t, "optimize-route", path, "--json")
	require.NoError(t, err)
	var route types.Route
	require.NoError(t, json.Unmarshal([]byte(out), &route))
	require.Len(t, route.Stops, 2)
	assert.Equal(t, 1, route.Stops[0].Position)
	assert.Equal(t, 2, route.Stops[1].Position)
	assert.Positive(t, route.TotalMiles)
}

func TestOptimizeRoute_Errors(t *testing.T) {
	_, err := runCLI(t, "optimize-route", filepath.Join(t.TempDir(), "missing.json"), "--json=false")
	assert.Error(t, err)

	_, err = runCLI(t, "optimize-route", writeFile(t, "empty.json", `[]`), "--json=false")
	assert.Error(t, err)
}

func TestReadStops(t *testing.T) {
	stops, err := readStops(strings.NewReader(`[{"job_id": "A"}, {"job_id": "B"}]`))
	require.NoError(t, err)
	assert.Len(t, stops, 2)

	stops, err = readStops(strings.NewReader(`{"stops": [{"job_id": "C"}]}`))
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.Equal(t, "C", stops[0].JobID)

	_, err = readStops(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestParseSeed_JSONAndYAML(t *testing.T) {
	fromYAML, err := parseSeed("seed.yaml", []byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, fromYAML.Jobs, 2)
	assert.Equal(t, "2024-03-10", fromYAML.Jobs[0].ScheduledDate)
	assert.Equal(t, types.JobStatusCompleted, fromYAML.Jobs[0].Status)
	assert.Equal(t, 15.0, fromYAML.Employees[0].PayRatePerJob)
	assert.Equal(t, []string{"Fulton"}, fromYAML.Employees[0].Counties)

	fromJSON, err := parseSeed("seed.json", []byte(`{"employees": [{"id": "E9", "name": "Lee"}]}`))
	require.NoError(t, err)
	require.Len(t, fromJSON.Employees, 1)
	assert.Equal(t, "E9", fromJSON.Employees[0].ID)

	_, err = parseSeed("seed.json", []byte(`{`))
	assert.Error(t, err)
}

func TestParseSeed_SchemaViolations(t *testing.T) {
	_, err := parseSeed("seed.json", []byte(`{"workers": []}`))
	var verr *schemas.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "seed.schema.json", verr.Schema)

	_, err = parseSeed("seed.yaml", []byte("training_records:\n  - employee_id: E1\n    module_id: safety-basics\n    score: 140\n"))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "$.training_records.0.score", verr.Problems[0].Path)
}

func TestLoadSeed(t *testing.T) {
	mem := memory.New()
	counts, err := loadSeed(context.Background(), mem, writeFile(t, "seed.yml", seedYAML))
	require.NoError(t, err)
	assert.Equal(t, seedCounts{Employees: 1, Jobs: 2, Training: 1}, counts)

	job, err := mem.GetJob(context.Background(), "J1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "E1", job.AssignedEmployeeID)

	records, err := mem.ListTrainingRecords(context.Background(), "E1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLoadSeed_RejectsUnknownStatus(t *testing.T) {
	path := writeFile(t, "seed.json", `{"jobs": [{"id": "J1", "status": "lost"}]}`)
	_, err := loadSeed(context.Background(), memory.New(), path)
	assert.Error(t, err)
}

func TestEarnings_SeededStore(t *testing.T) {
	isolateEnv(t)
	seed := writeFile(t, "seed.yaml", seedYAML)
	xlsx := filepath.Join(t.TempDir(), "payroll.xlsx")

	out, err := runCLI(t, "earnings", "E1", "--seed", seed, "--date", "2024-03-10", "--xlsx", xlsx)
	require.NoError(t, err)

	// J2 has no photo evidence and is not paid.
	assert.Contains(t, out, "Dana Reyes (E1)")
	assert.Contains(t, out, "Total:     $15.00")

	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestEarnings_UnknownEmployee(t *testing.T) {
	isolateEnv(t)
	_, err := runCLI(t, "earnings", "nobody", "--seed", writeFile(t, "seed.yaml", seedYAML), "--date", "2024-03-10", "--xlsx", "")
	assert.Error(t, err)
}

func TestToken_RoundTrip(t *testing.T) {
	isolateEnv(t)
	t.Setenv("JWT_SECRET", testSecret)

	out, err := runCLI(t, "token", "--employee", "E1", "--role", "")
	require.NoError(t, err)

	jwtConfig, err := config.NewJWTConfig(testSecret, 0)
	require.NoError(t, err)
	claims, err := server.NewJWTService(jwtConfig).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "E1", claims.EmployeeID)
	assert.Empty(t, claims.Role)
}

func TestToken_Errors(t *testing.T) {
	isolateEnv(t)

	_, err := runCLI(t, "token", "--employee", "E1", "--role", "")
	assert.ErrorContains(t, err, "JWT_SECRET not set")

	t.Setenv("JWT_SECRET", testSecret)
	_, err = runCLI(t, "token", "--employee", "E1", "--role", "admin")
	assert.ErrorContains(t, err, "unknown role")

	_, err = runCLI(t, "token", "--employee", "", "--role", "")
	assert.Error(t, err)
}
