package auth

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/harmony/internal/config"
)

func TestAuthorizer(t *testing.T) {
	Convey("Given the embedded policy", t, func() {
		a, err := New(&config.AuthConfig{
			SystemUser: "system",
			Users: []config.UserConfig{
				{ID: "alice", Roles: []string{"admin"}},
				{ID: "olga", Roles: []string{"operator"}},
				{ID: "victor", Roles: []string{"viewer"}},
			},
		}, nil)
		So(err, ShouldBeNil)

		Convey("Admins may do anything", func() {
			So(a.For("alice").HasPermission("settings", "delete"), ShouldBeTrue)
			So(a.For("alice").HasPermission("content", "update"), ShouldBeTrue)
		})

		Convey("Operators manage backup jobs but not content", func() {
			olga := a.For("olga")
			So(olga.CurrentUserID(), ShouldEqual, "olga")
			So(olga.HasPermission("settings", "create"), ShouldBeTrue)
			So(olga.HasPermission("settings", "update"), ShouldBeTrue)
			So(olga.HasPermission("settings", "delete"), ShouldBeFalse)
			So(olga.HasPermission("content", "update"), ShouldBeFalse)
		})

		Convey("Viewers only read", func() {
			So(a.For("victor").HasPermission("settings", "read"), ShouldBeTrue)
			So(a.For("victor").HasPermission("settings", "update"), ShouldBeFalse)
		})

		Convey("The system identity is an admin", func() {
			So(a.For("system").HasPermission("content", "create"), ShouldBeTrue)
		})

		Convey("Unknown users have no permissions", func() {
			So(a.For("mallory").HasPermission("settings", "read"), ShouldBeFalse)
		})
	})

	Convey("Given a policy file", t, func() {
		path := filepath.Join(t.TempDir(), "policy.csv")
		So(os.WriteFile(path, []byte("p, editor, content, update\ng, erin, editor\n"), 0o644), ShouldBeNil)

		a, err := New(&config.AuthConfig{SystemUser: "system", PolicyFile: path}, nil)
		So(err, ShouldBeNil)

		So(a.For("erin").HasPermission("content", "update"), ShouldBeTrue)
		So(a.For("erin").HasPermission("settings", "update"), ShouldBeFalse)
		// The file defines no admin rules.
		So(a.For("system").HasPermission("settings", "update"), ShouldBeFalse)
	})

	Convey("A missing policy file is an error", t, func() {
		_, err := New(&config.AuthConfig{PolicyFile: "/nonexistent/policy.csv"}, nil)
		So(err, ShouldNotBeNil)
	})
}
