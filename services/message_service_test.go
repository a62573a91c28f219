package services

import (
	"errors"
	"testing"
	"time"

	"infinityschool_go/models"
)

func TestReplyMarksOriginalAnswered(t *testing.T) {
	db := newTestDB(t)
	svc := NewMessageService(db)

	msg, err := svc.Create("Kurslar haqida ma'lumot bera olasizmi?", "user-17", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if msg.HasReply {
		t.Error("new message must not start answered")
	}

	original, reply, err := svc.Reply("Albatta, qaysi kurs qiziqtiradi?", "admin-1", msg.ID)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if !original.HasReply {
		t.Error("original not marked answered")
	}
	if !reply.IsAdmin {
		t.Error("reply must be an admin message")
	}
	if reply.ReplyToMessageID == nil || *reply.ReplyToMessageID != msg.ID {
		t.Errorf("reply links to %v, want %d", reply.ReplyToMessageID, msg.ID)
	}

	var stored models.Message
	if err := db.First(&stored, msg.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !stored.HasReply {
		t.Error("has_reply not persisted")
	}
}

func TestReplyToMissingMessage(t *testing.T) {
	svc := NewMessageService(newTestDB(t))

	if _, _, err := svc.Reply("javob", "admin-1", 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestOnlyNewestReplySurfaces(t *testing.T) {
	db := newTestDB(t)
	svc := NewMessageService(db)

	msg, err := svc.Create("To'lov o'tmadi", "user-17", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, _, err := svc.Reply("Tekshiryapmiz", "admin-1", msg.ID); err != nil {
		t.Fatalf("first reply: %v", err)
	}
	_, second, err := svc.Reply("Muammo hal qilindi", "admin-1", msg.ID)
	if err != nil {
		t.Fatalf("second reply: %v", err)
	}
	// force a later creation time; sqlite timestamps can collide inside one test
	if err := db.Model(second).Update("created_at", second.CreatedAt.Add(time.Second)).Error; err != nil {
		t.Fatalf("bump created_at: %v", err)
	}

	thread, err := svc.ListForUser("user-17")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}

	var withReply *MessageWithReply
	for i := range thread {
		if thread[i].ID == msg.ID {
			withReply = &thread[i]
		}
	}
	if withReply == nil {
		t.Fatal("original message missing from thread")
	}
	if withReply.Reply == nil {
		t.Fatal("no reply attached")
	}
	if withReply.Reply.ID != second.ID {
		t.Errorf("surfaced reply %d, want newest %d", withReply.Reply.ID, second.ID)
	}
}

func TestListForUserEmptyThreadGreets(t *testing.T) {
	svc := NewMessageService(newTestDB(t))

	thread, err := svc.ListForUser("user-99")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(thread) != 1 {
		t.Fatalf("thread length = %d, want 1", len(thread))
	}
	greeting := thread[0]
	if greeting.ID != 0 {
		t.Errorf("greeting id = %d, want 0", greeting.ID)
	}
	if greeting.Text != WelcomeMessageText {
		t.Errorf("greeting text = %q", greeting.Text)
	}
	if !greeting.IsAdmin {
		t.Error("greeting must come from the admin side")
	}
}

func TestListForUserExcludesOtherUsers(t *testing.T) {
	svc := NewMessageService(newTestDB(t))

	mine, err := svc.Create("Salom", "user-1", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create("Boshqa savol", "user-2", false); err != nil {
		t.Fatalf("Create other: %v", err)
	}
	if _, _, err := svc.Reply("Salom!", "admin-1", mine.ID); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	thread, err := svc.ListForUser("user-1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	// the user's message plus the admin reply to it
	if len(thread) != 2 {
		t.Fatalf("thread length = %d, want 2", len(thread))
	}
	for _, m := range thread {
		if m.UserID == "user-2" {
			t.Error("thread leaked another user's message")
		}
	}
}

func TestDeleteCascadesToReplies(t *testing.T) {
	db := newTestDB(t)
	svc := NewMessageService(db)

	msg, err := svc.Create("O'chiriladigan xabar", "user-17", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := svc.Reply("Javob", "admin-1", msg.ID); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	if err := svc.Delete(msg.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var count int64
	if err := db.Model(&models.Message{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("%d messages remain after cascade delete", count)
	}
}

func TestDeleteMissingMessage(t *testing.T) {
	svc := NewMessageService(newTestDB(t))

	if err := svc.Delete(12345); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUsersSummaryCountsUnanswered(t *testing.T) {
	svc := NewMessageService(newTestDB(t))

	first, err := svc.Create("Birinchi savol", "user-1", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create("Ikkinchi savol", "user-1", false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := svc.Reply("Javob", "admin-1", first.ID); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	summaries, err := svc.UsersSummary()
	if err != nil {
		t.Fatalf("UsersSummary: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	s := summaries[0]
	if s.UserID != "user-1" {
		t.Errorf("user id = %q", s.UserID)
	}
	if s.TotalMessages != 2 {
		t.Errorf("total = %d, want 2", s.TotalMessages)
	}
	if s.UnansweredMessages != 1 {
		t.Errorf("unanswered = %d, want 1", s.UnansweredMessages)
	}
}
