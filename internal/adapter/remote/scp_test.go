package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/stowaway/internal/domain"
)

func TestSCPCopier(t *testing.T) {
	Convey("Given an SCP copier", t, func() {
		params := domain.ConnectionParams{Host: "media.example.org", User: "deploy", Port: 2222}

		Convey("With the strict policy and an identity file", func() {
			copier := NewSCPCopier(PolicyStrict, "/home/u/.ssh/known_hosts", "/home/u/.ssh/id_ed25519")
			args := copier.args(params, "/srv/app/media", "/backups/media/01012024_120000")

			Convey("It should build a recursive batch-mode copy", func() {
				So(args, ShouldResemble, []string{
					"-r", "-B", "-P", "2222",
					"-o", "StrictHostKeyChecking=yes",
					"-o", "UserKnownHostsFile=/home/u/.ssh/known_hosts",
					"-i", "/home/u/.ssh/id_ed25519",
					"deploy@media.example.org:/srv/app/media",
					"/backups/media/01012024_120000",
				})
			})
		})

		Convey("With the trust-on-first-use policy", func() {
			args := NewSCPCopier(PolicyTOFU, "", "").args(params, "/m", "/l")
			So(args, ShouldContain, "StrictHostKeyChecking=accept-new")
		})

		Convey("With the accept-any policy", func() {
			args := NewSCPCopier(PolicyAcceptAny, "/kh", "").args(params, "/m", "/l")

			Convey("It should disable host key checks and ignore known hosts", func() {
				So(args, ShouldContain, "StrictHostKeyChecking=no")
				So(args, ShouldContain, "UserKnownHostsFile=/dev/null")
				So(args, ShouldNotContain, "UserKnownHostsFile=/kh")
			})
		})

		Convey("With an IPv6 host", func() {
			v6 := domain.ConnectionParams{Host: "2001:db8::1", User: "deploy", Port: 22}
			args := NewSCPCopier(PolicyStrict, "", "").args(v6, "/m", "/l")
			So(args[len(args)-2], ShouldEqual, "deploy@[2001:db8::1]:/m")
		})

		Convey("When the scp binary fails", func() {
			tempDir, err := os.MkdirTemp("", "scp_test")
			So(err, ShouldBeNil)
			defer os.RemoveAll(tempDir)

			copier := NewSCPCopier(PolicyStrict, "", "")
			copier.binary = filepath.Join(tempDir, "no-such-scp")
			err = copier.CopyTree(context.Background(), params, "/m", tempDir)

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "scp failed")
			})
		})
	})
}
