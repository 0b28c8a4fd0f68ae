package discord

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestPayloadRoundTrip(t *testing.T) {
	in := Payload{Action: ActionEdit, TranscriptionID: "42"}
	id := in.Encode()
	if id != "vocalis:edit:42" {
		t.Errorf("Encode() = %q, want %q", id, "vocalis:edit:42")
	}

	out, err := ParsePayload(id)
	if err != nil {
		t.Fatalf("ParsePayload(%q) error = %v", id, err)
	}
	if out != in {
		t.Errorf("ParsePayload(%q) = %+v, want %+v", id, out, in)
	}
}

func TestParsePayloadRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"too few parts", "vocalis:edit"},
		{"too many parts", "vocalis:edit:1:extra"},
		{"wrong namespace", "other:edit:1"},
		{"unknown action", "vocalis:delete:1"},
		{"empty id", "vocalis:edit:"},
		{"bare id", "42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParsePayload(tc.id); !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("ParsePayload(%q) error = %v, want ErrMalformedPayload", tc.id, err)
			}
		})
	}
}

func TestVoiceAttachment(t *testing.T) {
	cases := []struct {
		name string
		atts []*discordgo.MessageAttachment
		want string
	}{
		{
			name: "ogg content type",
			atts: []*discordgo.MessageAttachment{
				{Filename: "voice-message", ContentType: "audio/ogg"},
			},
			want: "voice-message",
		},
		{
			name: "ogg extension without content type",
			atts: []*discordgo.MessageAttachment{
				{Filename: "note.OGG"},
			},
			want: "note.OGG",
		},
		{
			name: "image skipped, audio found",
			atts: []*discordgo.MessageAttachment{
				{Filename: "photo.png", ContentType: "image/png"},
				{Filename: "clip.ogg", ContentType: "audio/ogg"},
			},
			want: "clip.ogg",
		},
		{
			name: "no audio",
			atts: []*discordgo.MessageAttachment{
				{Filename: "doc.pdf", ContentType: "application/pdf"},
			},
			want: "",
		},
		{name: "empty", atts: nil, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			att := voiceAttachment(tc.atts)
			var got string
			if att != nil {
				got = att.Filename
			}
			if got != tc.want {
				t.Errorf("voiceAttachment() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInteractionUser(t *testing.T) {
	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "1"}},
	}}
	if got := interactionUser(guild); got == nil || got.ID != "1" {
		t.Errorf("interactionUser(guild) = %v, want member user", got)
	}

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "2"},
	}}
	if got := interactionUser(dm); got == nil || got.ID != "2" {
		t.Errorf("interactionUser(dm) = %v, want dm user", got)
	}
}
