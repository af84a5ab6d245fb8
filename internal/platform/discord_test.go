package platform

import (
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestClassifyUnknownInvite(t *testing.T) {
	err := &discordgo.RESTError{
		Response:     &http.Response{StatusCode: http.StatusNotFound},
		ResponseBody: []byte(`{"message": "Unknown Invite", "code": 10006}`),
	}
	got := classify(err)
	if !errors.Is(got, ErrNotFound) {
		t.Fatalf("classify = %v, want ErrNotFound", got)
	}
}

func TestClassifyPassesOtherErrors(t *testing.T) {
	forbidden := &discordgo.RESTError{
		Response:     &http.Response{StatusCode: http.StatusForbidden},
		ResponseBody: []byte(`{"message": "Missing Permissions", "code": 50013}`),
	}
	if got := classify(forbidden); errors.Is(got, ErrNotFound) {
		t.Fatalf("permission error classified as not found: %v", got)
	}

	plain := errors.New("boom")
	if got := classify(plain); got != plain {
		t.Fatalf("classify changed a non-REST error: %v", got)
	}
}

func TestConvertInvite(t *testing.T) {
	inv := convertInvite(&discordgo.Invite{
		Code:    "abc",
		Uses:    4,
		Guild:   &discordgo.Guild{ID: "g1"},
		Channel: &discordgo.Channel{ID: "c1"},
		Inviter: &discordgo.User{ID: "u1"},
	})
	want := Invite{Code: "abc", Uses: 4, GuildID: "g1", ChannelID: "c1", InviterID: "u1"}
	if inv != want {
		t.Fatalf("convert = %+v, want %+v", inv, want)
	}
	if inv.URL() != "https://discord.gg/abc" {
		t.Fatalf("url = %s", inv.URL())
	}

	bare := convertInvite(&discordgo.Invite{Code: "vanity"})
	if bare.InviterID != "" || bare.GuildID != "" {
		t.Fatalf("bare invite = %+v", bare)
	}
}

func TestClassifyUnknownMember(t *testing.T) {
	err := &discordgo.RESTError{
		Response:     &http.Response{StatusCode: http.StatusNotFound},
		ResponseBody: []byte(`{"message": "Unknown Member", "code": 10007}`),
	}
	if got := classify(err); !errors.Is(got, ErrNotFound) {
		t.Fatalf("classify = %v, want ErrNotFound", got)
	}
}
