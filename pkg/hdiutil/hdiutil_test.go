package hdiutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records the last invocation and returns scripted output.
type fakeRunner struct {
	lastName  string
	lastArgs  []string
	lastStdin []byte
	stdout    []byte
	err       error
}

func (f *fakeRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	f.lastName = name
	f.lastArgs = args
	f.lastStdin = stdin
	return f.stdout, f.err
}

const attachPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>system-entities</key>
	<array>
		<dict>
			<key>content-hint</key>
			<string>GUID_partition_scheme</string>
			<key>dev-entry</key>
			<string>/dev/disk4</string>
		</dict>
		<dict>
			<key>content-hint</key>
			<string>Apple_APFS</string>
			<key>dev-entry</key>
			<string>/dev/disk4s1</string>
			<key>mount-point</key>
			<string>/Volumes/MediaSafe-Photos</string>
			<key>volume-kind</key>
			<string>apfs</string>
		</dict>
	</array>
</dict>
</plist>`

const infoPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>images</key>
	<array>
		<dict>
			<key>image-path</key>
			<string>/Users/kim/Vaults/photos.sparsebundle</string>
			<key>image-type</key>
			<string>sparse bundle disk image</string>
			<key>system-entities</key>
			<array>
				<dict>
					<key>dev-entry</key>
					<string>/dev/disk4s1</string>
					<key>mount-point</key>
					<string>/Volumes/MediaSafe-Photos</string>
				</dict>
			</array>
		</dict>
	</array>
</dict>
</plist>`

const diskutilPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>VolumeName</key>
	<string>Macintosh HD</string>
	<key>VolumeUUID</key>
	<string>0A81F3B1-51D9-4335-B3E3-169C3640360D</string>
</dict>
</plist>`

func TestCreateFeedsPasswordOverStdin(t *testing.T) {
	r := &fakeRunner{}
	c := New(WithRunner(r))

	err := c.Create(context.Background(), CreateOptions{
		BundlePath: "/Users/kim/Vaults/photos.sparsebundle",
		VolumeName: "MediaSafe-Photos",
		SizeMB:     51200,
		Password:   "s3cret",
	})
	require.NoError(t, err)

	assert.Equal(t, "hdiutil", r.lastName)
	assert.Equal(t, "create", r.lastArgs[0])
	assert.Contains(t, r.lastArgs, "-stdinpass")
	assert.Contains(t, r.lastArgs, "-size")
	assert.Contains(t, r.lastArgs, "51200m")
	assert.Contains(t, r.lastArgs, "MediaSafe-Photos")
	assert.Equal(t, []byte("s3cret"), r.lastStdin)
	assert.NotContains(t, r.lastArgs, "s3cret", "password must never appear in argv")
}

func TestAttachParsesEntities(t *testing.T) {
	r := &fakeRunner{stdout: []byte(attachPlist)}
	c := New(WithRunner(r))

	entities, err := c.Attach(context.Background(), "/Users/kim/Vaults/photos.sparsebundle", "s3cret")
	require.NoError(t, err)

	assert.Equal(t, "attach", r.lastArgs[0])
	assert.Contains(t, r.lastArgs, "-plist")
	assert.Contains(t, r.lastArgs, "-stdinpass")
	assert.Equal(t, []byte("s3cret"), r.lastStdin)

	require.Len(t, entities, 2)
	assert.Empty(t, entities[0].MountPoint)
	assert.Equal(t, "/Volumes/MediaSafe-Photos", entities[1].MountPoint)
	assert.Equal(t, "Apple_APFS", entities[1].ContentHint)
}

func TestAttachStampsOpOnToolError(t *testing.T) {
	r := &fakeRunner{err: &Error{ExitCode: 1, Diagnostic: "hdiutil: attach failed - Authentication error"}}
	c := New(WithRunner(r))

	_, err := c.Attach(context.Background(), "/x.sparsebundle", "wrong")
	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "attach", toolErr.Op)
	assert.Equal(t, 1, toolErr.ExitCode)
	assert.Contains(t, toolErr.Diagnostic, "Authentication error")
}

func TestDetach(t *testing.T) {
	r := &fakeRunner{}
	c := New(WithRunner(r))

	require.NoError(t, c.Detach(context.Background(), "/Volumes/MediaSafe-Photos", false))
	assert.Equal(t, []string{"detach", "/Volumes/MediaSafe-Photos"}, r.lastArgs)
	assert.Nil(t, r.lastStdin)

	require.NoError(t, c.Detach(context.Background(), "/Volumes/MediaSafe-Photos", true))
	assert.Equal(t, []string{"detach", "/Volumes/MediaSafe-Photos", "-force"}, r.lastArgs)
}

func TestChangePasswordStdinProtocol(t *testing.T) {
	r := &fakeRunner{}
	c := New(WithRunner(r))

	err := c.ChangePassword(context.Background(), "/x.sparsebundle", "old-pw", "new-pw")
	require.NoError(t, err)

	assert.Equal(t, []string{"chpass", "/x.sparsebundle"}, r.lastArgs)
	// Old password, new password, then the confirmation the tool requires.
	assert.Equal(t, []byte("old-pw\nnew-pw\nnew-pw\n"), r.lastStdin)
}

func TestCompact(t *testing.T) {
	r := &fakeRunner{}
	c := New(WithRunner(r))

	require.NoError(t, c.Compact(context.Background(), "/x.sparsebundle"))
	assert.Equal(t, []string{"compact", "/x.sparsebundle"}, r.lastArgs)
	assert.Nil(t, r.lastStdin)
}

func TestInfoParsesImages(t *testing.T) {
	r := &fakeRunner{stdout: []byte(infoPlist)}
	c := New(WithRunner(r))

	images, err := c.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"info", "-plist"}, r.lastArgs)

	require.Len(t, images, 1)
	assert.Equal(t, "/Users/kim/Vaults/photos.sparsebundle", images[0].ImagePath)
	require.Len(t, images[0].Entities, 1)
	assert.Equal(t, "/Volumes/MediaSafe-Photos", images[0].Entities[0].MountPoint)
}

func TestVolumeUUID(t *testing.T) {
	r := &fakeRunner{stdout: []byte(diskutilPlist)}
	c := New(WithRunner(r), WithDiskutilBinary("diskutil"))

	id, err := c.VolumeUUID(context.Background(), "/Users/kim/Vaults")
	require.NoError(t, err)
	assert.Equal(t, "diskutil", r.lastName)
	assert.Equal(t, []string{"info", "-plist", "/Users/kim/Vaults"}, r.lastArgs)
	assert.Equal(t, "0A81F3B1-51D9-4335-B3E3-169C3640360D", id)
}

func TestErrorMessage(t *testing.T) {
	withDiag := &Error{Op: "attach", ExitCode: 1, Diagnostic: "Resource busy"}
	assert.Contains(t, withDiag.Error(), "attach")
	assert.Contains(t, withDiag.Error(), "Resource busy")

	bare := &Error{Op: "detach", ExitCode: 16}
	assert.Contains(t, bare.Error(), "status 16")
}
