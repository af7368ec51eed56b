package extract

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func parse(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

const profilePage = `<html><body>
<header><h1>Rico</h1></header>
<div class="profile__info"><p class="BodyText-sc-1lb5dia-0 eeZNnP">Out and about</p>
<p class="BodyText-sc-1lb5dia-0 cmLITB">Berlin</p></div>
<div style="background-image: url('/photos/main.jpg')"></div>
<section>
	<div><p>Age</p><div><p>31</p></div></div>
	<div><p>Height</p><div><p>182 cm</p></div></div>
	<div><p>Languages</p><div><p>English, Hindi</p></div></div>
</section>
<section class="sc-mtxjf3-0 eMUZzW"><p>Member since: May 2019<br>Profile ID: 4471234</p></section>
</body></html>`

func TestProfile_FullPage(t *testing.T) {
	doc := parse(t, profilePage)
	r := Profile(doc, "https://www.example.com/profile/rico81/", Config{})

	if r.Name != "Rico" {
		t.Errorf("name: got %q", r.Name)
	}
	if r.Username != "rico81" {
		t.Errorf("username: got %q", r.Username)
	}
	if r.Bio != "Out and about" {
		t.Errorf("bio: got %q", r.Bio)
	}
	if r.Location != "Berlin" {
		t.Errorf("location: got %q", r.Location)
	}
	if r.Age != "31" {
		t.Errorf("age via label: got %q", r.Age)
	}
	if r.Height != "182 cm" {
		t.Errorf("height via label: got %q", r.Height)
	}
	if r.Languages != "English, Hindi" {
		t.Errorf("languages: got %q", r.Languages)
	}
	if r.English != "yes" || r.Hindi != "yes" || r.Bengali != "" {
		t.Errorf("language flags: en=%q bn=%q hi=%q", r.English, r.Bengali, r.Hindi)
	}
	if r.ImageURL != "https://www.example.com/photos/main.jpg" {
		t.Errorf("image: got %q", r.ImageURL)
	}
	if r.MemberSince != "May 2019" {
		t.Errorf("member since: got %q", r.MemberSince)
	}
	if r.ProfileID != "4471234" {
		t.Errorf("profile id: got %q", r.ProfileID)
	}
	if r.ProfileURL != "https://www.example.com/profile/rico81/" {
		t.Errorf("provenance: got %q", r.ProfileURL)
	}
}

func TestProfile_EmptyPageYieldsEmptyStrings(t *testing.T) {
	doc := parse(t, `<html><body></body></html>`)
	r := Profile(doc, "https://www.example.com/profile/ghost", Config{})

	for name, v := range map[string]string{
		"name": r.Name, "bio": r.Bio, "location": r.Location, "age": r.Age,
		"height": r.Height, "weight": r.Weight, "body_type": r.BodyType,
		"languages": r.Languages, "member_since": r.MemberSince,
		"image": r.ImageURL, "image_base64": r.ImageBase64,
	} {
		if v != "" {
			t.Errorf("%s: got %q, want empty", name, v)
		}
	}
	if r.Username != "ghost" {
		t.Errorf("username tail match: got %q", r.Username)
	}
	if r.FaceResult != nil {
		t.Error("face result must be absent")
	}
}

func TestProfile_NameFallsBackToID(t *testing.T) {
	doc := parse(t, `<html><body><p class="eeZNnP">88821</p></body></html>`)
	r := Profile(doc, "https://www.example.com/profile/x/", Config{})
	if r.Name != "88821" {
		t.Errorf("name fallback to id: got %q", r.Name)
	}
}

func TestResolve_ChainOrder(t *testing.T) {
	doc := parse(t, `<html><body><h2>Second</h2><div class="alt">Third</div></body></html>`)

	got := Resolve(doc, Sel("h1", "h2", ".alt"))
	if got != "Second" {
		t.Errorf("chain: got %q, want %q", got, "Second")
	}
	got = Resolve(doc, Sel("h1", ".missing"))
	if got != "" {
		t.Errorf("exhausted chain: got %q, want empty", got)
	}
}

func TestResolve_MixedStrategies(t *testing.T) {
	doc := parse(t, `<html><body><div><p>Weight</p><div><p>74 kg</p></div></div></body></html>`)
	got := Resolve(doc, Sel(".never-there").Lbl("Weight"))
	if got != "74 kg" {
		t.Errorf("selector-then-label: got %q", got)
	}
}

func TestLabelValue_ParentNextSibling(t *testing.T) {
	doc := parse(t, `<html><body>
		<div><p>Relationship</p></div>
		<div><p>Single</p></div>
	</body></html>`)
	if got := labelValue(doc, "Relationship"); got != "Single" {
		t.Errorf("sibling value: got %q", got)
	}
}

func TestLabelValue_NoMatch(t *testing.T) {
	doc := parse(t, `<html><body><p>Age of empires</p></body></html>`)
	if got := labelValue(doc, "Age"); got != "" {
		t.Errorf("exact match required: got %q", got)
	}
}

func TestImageURL_LazyLoadFallback(t *testing.T) {
	doc := parse(t, `<html><body><img data-src="//cdn.example/p.jpg"></body></html>`)
	if got := imageURL(doc, "https://www.example.com/profile/a/"); got != "https://cdn.example/p.jpg" {
		t.Errorf("lazy src: got %q", got)
	}
}

func TestMemberSection_LabelFallback(t *testing.T) {
	doc := parse(t, `<html><body>
		<div><p>Member since</p><div><p>March 2021</p></div></div>
	</body></html>`)
	since, id := memberSection(doc, configWithDefaults(), "kept")
	if since != "March 2021" {
		t.Errorf("member since fallback: got %q", since)
	}
	if id != "kept" {
		t.Errorf("id must be kept when section absent: got %q", id)
	}
}

func configWithDefaults() Config {
	var c Config
	c.defaults()
	return c
}

func TestParseResolver(t *testing.T) {
	if r := ParseResolver("label:Body Hair"); r.Label != "Body Hair" || r.Selector != "" {
		t.Errorf("label form: %+v", r)
	}
	if r := ParseResolver("css:h1"); r.Selector != "h1" {
		t.Errorf("css form: %+v", r)
	}
	if r := ParseResolver(".bare"); r.Selector != ".bare" {
		t.Errorf("bare form: %+v", r)
	}
}
