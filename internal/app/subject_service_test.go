package app

import (
	"context"
	"errors"
	"testing"

	"studybuddy/internal/retrieval"
)

func TestSubjectCreateAndSwitch(t *testing.T) {
	h := newHarness(t)

	if _, err := h.subjects.Active("u1"); !errors.Is(err, ErrNoActiveSubject) {
		t.Fatalf("Active before create: got %v, want ErrNoActiveSubject", err)
	}

	bio, err := h.subjects.Create("u1", "Bio 101", "")
	if err != nil {
		t.Fatal(err)
	}
	if bio.Key != "bio_101" {
		t.Fatalf("key = %q, want bio_101", bio.Key)
	}
	if _, err := h.subjects.Create("u1", "History", "Zelda"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.subjects.Create("u1", "bio 101", ""); !errors.Is(err, ErrSubjectExists) {
		t.Fatalf("duplicate create: got %v, want ErrSubjectExists", err)
	}
	if _, err := h.subjects.Create("u1", "   ", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank name: got %v, want ErrInvalidInput", err)
	}

	active, err := h.subjects.Active("u1")
	if err != nil {
		t.Fatal(err)
	}
	if active.Key != "bio_101" {
		t.Fatalf("first subject should be active, got %q", active.Key)
	}

	if _, err := h.subjects.Switch("u1", "HISTORY"); err != nil {
		t.Fatal(err)
	}
	views, err := h.subjects.List("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d subjects, want 2", len(views))
	}
	for _, v := range views {
		if v.Active != (v.Key == "history") {
			t.Fatalf("subject %q active = %v", v.Key, v.Active)
		}
	}

	if _, err := h.subjects.Switch("u1", "chemistry"); !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("switch to missing subject: got %v", err)
	}
	if _, err := h.subjects.Active("u2"); !errors.Is(err, ErrNoActiveSubject) {
		t.Fatalf("other user should have no subject, got %v", err)
	}
}

func TestSubjectGame(t *testing.T) {
	h := newHarness(t)
	if _, err := h.subjects.Create("u1", "Bio", ""); err != nil {
		t.Fatal(err)
	}

	subj, err := h.subjects.SetGame("u1", "Pokemon")
	if err != nil {
		t.Fatal(err)
	}
	if got := h.subjects.GameOf(subj); got != "Pokemon" {
		t.Fatalf("GameOf = %q", got)
	}

	subj, err = h.subjects.SetGame("u1", "")
	if err != nil {
		t.Fatal(err)
	}
	if got := h.subjects.GameOf(subj); got != defaultGame {
		t.Fatalf("GameOf after reset = %q, want %q", got, defaultGame)
	}
}

func TestSubjectDeleteDropsScope(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if _, err := h.subjects.Create("u1", "Bio", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := h.subjects.Create("u1", "History", ""); err != nil {
		t.Fatal(err)
	}
	h.upload(t, "u1", "cells.txt", retrieval.Lecture, "Mitochondria are the powerhouse of the cell and make ATP.")
	if _, err := h.questions.Add("u1", "What makes ATP?", "Mitochondria"); err != nil {
		t.Fatal(err)
	}
	bioScope := retrieval.Scope{UserID: "u1", Subject: "bio"}
	_ = h.cache.Set(ctx, "study:answer:u1:bio:x:y", "cached")
	_ = h.cache.Set(ctx, "study:answer:u1:history:x:y", "kept")

	if err := h.subjects.Delete(ctx, "u1", "Bio"); err != nil {
		t.Fatal(err)
	}

	if _, ok := h.registry.Lookup(bioScope); ok {
		t.Fatal("index of deleted subject still present")
	}
	docs, err := h.documents.ListByScope("u1", "bio")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Fatalf("got %d persisted documents, want 0", len(docs))
	}
	if _, ok, _ := h.cache.Get(ctx, "study:answer:u1:bio:x:y"); ok {
		t.Fatal("cached answer of deleted subject survived")
	}
	if _, ok, _ := h.cache.Get(ctx, "study:answer:u1:history:x:y"); !ok {
		t.Fatal("cached answer of another subject was removed")
	}

	active, err := h.subjects.Active("u1")
	if err != nil {
		t.Fatal(err)
	}
	if active.Key != "history" {
		t.Fatalf("active after delete = %q, want history", active.Key)
	}
	entries, err := h.questions.Entries(bioScope)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("question bank of deleted subject has %d entries", len(entries))
	}

	if err := h.subjects.Delete(ctx, "u1", "History"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.subjects.Active("u1"); !errors.Is(err, ErrNoActiveSubject) {
		t.Fatalf("after deleting every subject: got %v", err)
	}
	if err := h.subjects.Delete(ctx, "u1", "History"); !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
}
