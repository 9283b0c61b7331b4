package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/wsgidock/internal/model"
)

// validLabels returns a complete label set matching what BuildLabels
// produces, for use as the base of table tests.
func validLabels() map[string]string {
	return map[string]string{
		LabelManagedBy:   ManagedByValue,
		LabelName:        "billing-api",
		LabelProjectPath: "/home/user/projects/billing-api",
		LabelImage:       "wsgidock/billing-api:latest",
		LabelVariant:     "full",
		LabelEntrypoint:  "backend.wsgi:application",
		LabelPort:        "8080",
		LabelWorkers:     "4",
		LabelThreads:     "8",
		LabelHostPort:    "9000",
		LabelCreatedAt:   "2026-02-28T10:00:00Z",
	}
}

// TestBuildLabels verifies that BuildLabels correctly converts a Service
// into a Docker label map with all required keys and values.
func TestBuildLabels(t *testing.T) {
	createdAt := time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)
	svc := &model.Service{
		Name:        "billing-api",
		ProjectPath: "/home/user/projects/billing-api",
		ImageTag:    "wsgidock/billing-api:latest",
		Variant:     model.VariantFull,
		Launch: model.LaunchConfig{
			Port:       8080,
			Workers:    4,
			Threads:    8,
			Entrypoint: model.Entrypoint{Module: "backend.wsgi", Object: "application"},
			// Env is intentionally not persisted in labels.
			Env: map[string]string{"DJANGO_SETTINGS_MODULE": "backend.settings"},
		},
		HostPort:  9000,
		CreatedAt: createdAt,
	}

	labels := BuildLabels(svc)

	assert.Equal(t, ManagedByValue, labels[LabelManagedBy],
		"managed-by label should always be set to the constant value")
	assert.Equal(t, "billing-api", labels[LabelName])
	assert.Equal(t, "/home/user/projects/billing-api", labels[LabelProjectPath])
	assert.Equal(t, "wsgidock/billing-api:latest", labels[LabelImage])
	assert.Equal(t, "full", labels[LabelVariant])
	assert.Equal(t, "backend.wsgi:application", labels[LabelEntrypoint])
	assert.Equal(t, "8080", labels[LabelPort])
	assert.Equal(t, "4", labels[LabelWorkers])
	assert.Equal(t, "8", labels[LabelThreads])
	assert.Equal(t, "9000", labels[LabelHostPort])
	assert.Equal(t, "2026-02-28T10:00:00Z", labels[LabelCreatedAt])

	// Exactly the 11 management labels — the free-form env never leaks
	// into labels.
	assert.Len(t, labels, 11)
}

// TestParseLabels verifies that ParseLabels correctly reconstructs a
// Service from a Docker label map. This is the inverse of BuildLabels.
func TestParseLabels(t *testing.T) {
	svc, err := ParseLabels(validLabels())

	require.NoError(t, err, "ParseLabels should succeed with valid labels")
	assert.Equal(t, "billing-api", svc.Name)
	assert.Equal(t, "/home/user/projects/billing-api", svc.ProjectPath)
	assert.Equal(t, "wsgidock/billing-api:latest", svc.ImageTag)
	assert.Equal(t, model.VariantFull, svc.Variant)
	assert.Equal(t, 8080, svc.Launch.Port)
	assert.Equal(t, 4, svc.Launch.Workers)
	assert.Equal(t, 8, svc.Launch.Threads)
	assert.Equal(t, "backend.wsgi:application", svc.Launch.Entrypoint.String())
	assert.Equal(t, 9000, svc.HostPort)
	assert.Equal(t, time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC), svc.CreatedAt)
}

// TestParseLabels_MissingRequired verifies that ParseLabels returns an
// error when required labels are missing from the label map.
func TestParseLabels_MissingRequired(t *testing.T) {
	// Sub-test table: each test case removes one required label to verify
	// that its absence is detected.
	testCases := []struct {
		name       string
		missingKey string
	}{
		{"missing managed-by", LabelManagedBy},
		{"missing name", LabelName},
		{"missing project-path", LabelProjectPath},
		{"missing image", LabelImage},
		{"missing variant", LabelVariant},
		{"missing entrypoint", LabelEntrypoint},
		{"missing port", LabelPort},
		{"missing workers", LabelWorkers},
		{"missing threads", LabelThreads},
		{"missing host-port", LabelHostPort},
		{"missing created-at", LabelCreatedAt},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			labels := validLabels()
			delete(labels, tc.missingKey)

			_, err := ParseLabels(labels)
			require.Error(t, err, "should fail when %s is missing", tc.missingKey)
			assert.Contains(t, err.Error(), tc.missingKey,
				"error message should mention the missing label key")
		})
	}
}

// TestParseLabels_InvalidManagedBy verifies that ParseLabels rejects
// containers with an unexpected managed-by value.
func TestParseLabels_InvalidManagedBy(t *testing.T) {
	labels := validLabels()
	labels[LabelManagedBy] = "some-other-tool"

	_, err := ParseLabels(labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected value")
}

// TestParseLabels_InvalidValues verifies that ParseLabels returns an
// error for each label whose value cannot be parsed into its typed form.
func TestParseLabels_InvalidValues(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{"invalid variant", LabelVariant, "slim"},
		{"invalid entrypoint", LabelEntrypoint, "1bad:app"},
		{"non-numeric port", LabelPort, "eight"},
		{"non-numeric workers", LabelWorkers, "many"},
		{"non-numeric threads", LabelThreads, ""},
		{"non-numeric host-port", LabelHostPort, "auto"},
		{"unparseable timestamp", LabelCreatedAt, "not-a-timestamp"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			labels := validLabels()
			labels[tc.key] = tc.value

			_, err := ParseLabels(labels)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key,
				"error message should mention the offending label key")
		})
	}
}

// TestFilterLabels verifies that FilterLabels returns the correct
// filter map for listing managed containers.
func TestFilterLabels(t *testing.T) {
	filters := FilterLabels()

	// The filter should contain exactly one entry: the managed-by label.
	require.Len(t, filters, 1, "filter should contain exactly one label")
	assert.Equal(t, ManagedByValue, filters[LabelManagedBy],
		"filter should match the managed-by label value")
}

// TestBuildAndParseLabelRoundTrip verifies that building labels from a
// Service and parsing them back produces an equivalent Service. This
// ensures the two functions are inverse operations.
func TestBuildAndParseLabelRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	original := &model.Service{
		Name:        "roundtrip-test",
		ProjectPath: "/home/user/projects/roundtrip",
		ImageTag:    "wsgidock/roundtrip-test:latest",
		Variant:     model.VariantVCS,
		Launch: model.LaunchConfig{
			Port:       8080,
			Workers:    2,
			Threads:    8,
			Entrypoint: model.DefaultEntrypoint,
		},
		HostPort:  18080,
		CreatedAt: createdAt,
	}

	labels := BuildLabels(original)
	parsed, err := ParseLabels(labels)
	require.NoError(t, err)

	// Compare the fields that are preserved through labels.
	// Note: Status, Containers, and Launch.Env are NOT persisted in
	// labels, so they are excluded from comparison.
	assert.Equal(t, original.Name, parsed.Name)
	assert.Equal(t, original.ProjectPath, parsed.ProjectPath)
	assert.Equal(t, original.ImageTag, parsed.ImageTag)
	assert.Equal(t, original.Variant, parsed.Variant)
	assert.Equal(t, original.Launch.Port, parsed.Launch.Port)
	assert.Equal(t, original.Launch.Workers, parsed.Launch.Workers)
	assert.Equal(t, original.Launch.Threads, parsed.Launch.Threads)
	assert.Equal(t, original.Launch.Entrypoint, parsed.Launch.Entrypoint)
	assert.Equal(t, original.HostPort, parsed.HostPort)
	assert.Equal(t, original.CreatedAt.UTC(), parsed.CreatedAt.UTC())
}
