package capability

import (
	"reflect"
	"testing"
)

// TestExpandImpliesSentiment verifies transcription pulls in sentiment.
func TestExpandImpliesSentiment(t *testing.T) {
	table := Defaults()

	final := table.Expand([]string{ObjectDetection, Transcription})
	want := []string{ObjectDetection, Transcription, Sentiment}
	if !reflect.DeepEqual(final, want) {
		t.Errorf("Expand() = %v, want %v", final, want)
	}
}

// TestExpandWithoutTranscription verifies no implied capability is added.
func TestExpandWithoutTranscription(t *testing.T) {
	table := Defaults()

	final := table.Expand([]string{OCR})
	want := []string{OCR}
	if !reflect.DeepEqual(final, want) {
		t.Errorf("Expand() = %v, want %v", final, want)
	}
}

// TestExpandIdempotent verifies expanding an expanded set changes nothing.
func TestExpandIdempotent(t *testing.T) {
	table := Defaults()

	once := table.Expand([]string{Transcription, Classification})
	twice := table.Expand(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Expand() not idempotent: %v then %v", once, twice)
	}
}

// TestExpandDropsDuplicates verifies duplicate requests collapse.
func TestExpandDropsDuplicates(t *testing.T) {
	table := Defaults()

	final := table.Expand([]string{OCR, OCR, Transcription, Sentiment})
	want := []string{OCR, Transcription, Sentiment}
	if !reflect.DeepEqual(final, want) {
		t.Errorf("Expand() = %v, want %v", final, want)
	}
}

// TestValidateUnknownCapability verifies unknown names are rejected.
func TestValidateUnknownCapability(t *testing.T) {
	table := Defaults()

	if err := table.Validate([]string{"face_swap"}); err == nil {
		t.Error("Validate() accepted unknown capability")
	}
}

// TestValidateDependentCapability verifies sentiment is rejected on its
// own but accepted alongside transcription.
func TestValidateDependentCapability(t *testing.T) {
	table := Defaults()

	if err := table.Validate([]string{Sentiment}); err == nil {
		t.Error("Validate() accepted sentiment without transcription")
	}
	if err := table.Validate([]string{Transcription, Sentiment}); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

// TestValidateKnownCapabilities verifies the happy path.
func TestValidateKnownCapabilities(t *testing.T) {
	table := Defaults()

	if err := table.Validate([]string{ObjectDetection, Classification, OCR, Transcription}); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

// TestDependents verifies the dependency edge is data-driven.
func TestDependents(t *testing.T) {
	table := Defaults()

	deps := table.Dependents(Transcription)
	if len(deps) != 1 || deps[0].Name != Sentiment {
		t.Errorf("Dependents(transcription) = %v, want [sentiment]", deps)
	}

	if deps := table.Dependents(ObjectDetection); len(deps) != 0 {
		t.Errorf("Dependents(object_detection) = %v, want none", deps)
	}
}
