package cmds

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"io/ioutil"
	"math/big"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"lukechampine.com/uint128"

	"github.com/varbit/leb128/cmd/leb/cmds/helphelpers"
	"github.com/varbit/leb128/pkg/config"
	"github.com/varbit/leb128/pkg/leb128"
	"github.com/varbit/leb128/pkg/logflags"
	"github.com/varbit/leb128/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string

	// signed selects the signed variant of the encoding.
	signed bool
	// width is the bit width of the integer type values are encoded and
	// decoded at.
	width = widthValue(64)
	// format is the output format of the encode command.
	format string
	// stream is whether the decode command should read consecutive values
	// until the input is exhausted.
	stream bool
	// raw is whether standard input carries the encoded bytes directly
	// instead of hex text.
	raw bool
	// versionVerbose is whether the version command should print the full
	// build information.
	versionVerbose bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

// defaultMaxStreamValues bounds --stream when max-stream-values is not
// configured.
const defaultMaxStreamValues = 4096

const lebCommandLongDesc = `leb encodes and decodes integers in the Little Endian Base 128 variable
length format used by DWARF debug information, WebAssembly and many other
binary formats.

Every value is stored as a sequence of bytes carrying 7 payload bits each,
least significant group first, with the high bit set on all bytes except the
last. The signed variant of the encoding carries the sign in bit 6 of the
final byte.

Values that do not fit the selected --width are rejected rather than
truncated, both when encoding and when decoding.`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()
	if conf.DefaultWidth != nil {
		if err := width.Set(strconv.Itoa(*conf.DefaultWidth)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: ignoring configured default-width: %v\n", err)
		}
	}
	formatDefault := "hex"
	if conf.DefaultFormat != "" {
		formatDefault = conf.DefaultFormat
	}

	// Main leb root command.
	rootCommand = &cobra.Command{
		Use:   "leb",
		Short: "leb is an encoder and decoder for the LEB128 integer format.",
		Long:  lebCommandLongDesc,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debug logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'leb help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'leb help log').")

	rootCommand.PersistentFlags().VarP(&width, "width", "w", "Bit width of the target integer type: 8, 16, 32, 64 or 128.")
	rootCommand.PersistentFlags().BoolVarP(&signed, "signed", "s", false, "Use the signed variant of the encoding.")

	// 'encode' subcommand.
	encodeCommand := &cobra.Command{
		Use:   "encode <value>...",
		Short: "Encode integers to LEB128.",
		Long: `Encode integers to LEB128.

Values are decimal or 0x-prefixed hexadecimal literals and must fit the
selected --width. With --signed negative values are accepted; separate them
from the flags with --, for example:

	leb encode -s -w 32 -- -83

With no arguments values are read from standard input, separated by
whitespace. Each value is encoded on its own output line, except with
--format raw which writes the encoded bytes back to back.`,
		Run: encodeCmd,
	}
	encodeCommand.Flags().StringVarP(&format, "format", "f", formatDefault, "Output format: hex, go, c or raw.")
	rootCommand.AddCommand(encodeCommand)

	// 'decode' subcommand.
	decodeCommand := &cobra.Command{
		Use:   "decode [<byte>...]",
		Short: "Decode LEB128 bytes to an integer.",
		Long: `Decode LEB128 bytes to an integer.

Input bytes are given as hex arguments ("e5 8e 26", 0x prefixes and commas
are accepted) or read from standard input: hex text by default, the encoded
bytes directly with --raw. The decoded value is printed in decimal.

Encodings whose value does not fit the selected --width are reported as
errors, including encodings that only overflow in their final byte.`,
		Run: decodeCmd,
	}
	decodeCommand.Flags().BoolVar(&stream, "stream", false, "Decode consecutive values until the input is exhausted.")
	decodeCommand.Flags().BoolVar(&raw, "raw", false, "Read the encoded bytes directly from standard input instead of hex text.")
	rootCommand.AddCommand(decodeCommand)

	// 'dump' subcommand.
	dumpCommand := &cobra.Command{
		Use:   "dump [<byte>...]",
		Short: "Show the per-byte structure of a LEB128 encoding.",
		Long: `Show the per-byte structure of a LEB128 encoding.

For every input byte dump prints its offset, value, continuation flag,
payload bits and the bit position the payload lands at, followed by the
decoded value. Input is accepted in the same forms as for decode.`,
		Run: dumpCmd,
	}
	dumpCommand.Flags().BoolVar(&raw, "raw", false, "Read the encoded bytes directly from standard input instead of hex text.")
	rootCommand.AddCommand(dumpCommand)

	// 'config' subcommand.
	configCommand := &cobra.Command{
		Use:   "config [<name> [<value>]]",
		Short: "Show or change configuration parameters.",
		Long: `Show or change configuration parameters.

Called without arguments config lists all parameters and their values.
With a single argument it prints the named parameter. With a name and a
value it changes the parameter and saves the configuration file.

Aliases are set per command:

	leb config aliases decode 'd dec'`,
		Run: configCmd,
	}
	rootCommand.AddCommand(configCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("leb - LEB128 encoder and decoder\n%s\n", version.LebVersion)
			if versionVerbose {
				fmt.Println(version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	codec		Log every byte group consumed while decoding
	cli		Log command processing

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.

`,
	})

	// Add aliases from the configuration file.
	for _, cmd := range rootCommand.Commands() {
		if aliases := conf.Aliases[cmd.Name()]; len(aliases) > 0 {
			cmd.Aliases = append(cmd.Aliases, aliases...)
		}
	}

	helpFunc := rootCommand.HelpFunc()
	rootCommand.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helphelpers.Prepare(cmd)
		helpFunc(cmd, args)
	})

	usageFunc := rootCommand.UsageFunc()
	rootCommand.SetUsageFunc(func(cmd *cobra.Command) error {
		helphelpers.Prepare(cmd)
		return usageFunc(cmd)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func encodeCmd(cmd *cobra.Command, args []string) {
	os.Exit(encode(cmd.OutOrStdout(), args))
}

func encode(out io.Writer, args []string) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	if len(args) == 0 {
		data, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		args = strings.Fields(string(data))
	}
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "no values to encode\n")
		return 1
	}

	cliLog := logflags.CLILogger()
	for _, arg := range args {
		enc, err := encodeOne(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		cliLog.Debugf("encoded %q to %d bytes at width %d", arg, len(enc), int(width))
		if format == "raw" {
			if _, err := out.Write(enc); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				return 1
			}
			continue
		}
		line, err := formatEncoding(enc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		fmt.Fprintln(out, line)
	}
	return 0
}

// encodeOne parses arg at the selected width and signedness and returns its
// encoding.
func encodeOne(arg string) ([]byte, error) {
	var buf [leb128.MaxLen128]byte

	if int(width) == 128 {
		b, ok := new(big.Int).SetString(arg, 0)
		if !ok {
			return nil, fmt.Errorf("invalid value %q", arg)
		}
		if signed {
			x, err := int128FromBig(b)
			if err != nil {
				return nil, fmt.Errorf("value %q out of range for signed 128-bit integer", arg)
			}
			return leb128.AppendInt128(buf[:0], x), nil
		}
		if b.Sign() < 0 || b.BitLen() > 128 {
			return nil, fmt.Errorf("value %q out of range for unsigned 128-bit integer", arg)
		}
		return leb128.AppendUint128(buf[:0], uint128.FromBig(b)), nil
	}

	// The minimal encoding of a value is the same at every width the value
	// fits, so parsing bounds the range and 64-bit encoding does the rest.
	if signed {
		v, err := strconv.ParseInt(arg, 0, int(width))
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for signed %d-bit integer", arg, int(width))
		}
		return leb128.AppendSigned(buf[:0], v), nil
	}
	v, err := strconv.ParseUint(arg, 0, int(width))
	if err != nil {
		return nil, fmt.Errorf("invalid value %q for unsigned %d-bit integer", arg, int(width))
	}
	return leb128.AppendUnsigned(buf[:0], v), nil
}

var big2to128 = new(big.Int).Lsh(big.NewInt(1), 128)

func int128FromBig(b *big.Int) (leb128.Int128, error) {
	if b.Cmp(leb128.MinInt128.Big()) < 0 || b.Cmp(leb128.MaxInt128.Big()) > 0 {
		return leb128.Int128{}, fmt.Errorf("out of range")
	}
	tc := new(big.Int).Mod(b, big2to128)
	return leb128.Int128FromBits(uint128.FromBig(tc)), nil
}

func formatEncoding(enc []byte) (string, error) {
	hexed := make([]string, len(enc))
	for i, b := range enc {
		hexed[i] = fmt.Sprintf("0x%02x", b)
	}
	switch format {
	case "hex":
		for i := range hexed {
			hexed[i] = hexed[i][2:]
		}
		return strings.Join(hexed, " "), nil
	case "go":
		return "[]byte{" + strings.Join(hexed, ", ") + "}", nil
	case "c":
		return "{" + strings.Join(hexed, ", ") + "}", nil
	}
	return "", fmt.Errorf("unknown format %q, must be hex, go, c or raw", format)
}

func decodeCmd(cmd *cobra.Command, args []string) {
	os.Exit(decode(cmd.OutOrStdout(), args))
}

func decode(out io.Writer, args []string) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	data, err := inputBytes(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	if len(data) == 0 && !stream {
		fmt.Fprint(os.Stderr, "no bytes to decode\n")
		return 1
	}

	cliLog := logflags.CLILogger()
	cliLog.Debugf("decoding %d bytes at width %d signed=%v stream=%v", len(data), int(width), signed, stream)

	br := bytes.NewReader(data)
	var rd io.Reader = br
	if logflags.Codec() {
		rd = &traceReader{r: br, log: logflags.CodecLogger()}
	}

	if !stream {
		value, err := decodeOne(rd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		if br.Len() > 0 {
			fmt.Fprintf(os.Stderr, "Warning: %d trailing bytes ignored\n", br.Len())
		}
		fmt.Fprintln(out, value)
		return 0
	}

	max := defaultMaxStreamValues
	if conf != nil && conf.MaxStreamValues != nil {
		max = *conf.MaxStreamValues
	}
	for n := 0; br.Len() > 0; n++ {
		if n >= max {
			fmt.Fprintf(os.Stderr, "stopping after %d values (max-stream-values)\n", max)
			return 1
		}
		value, err := decodeOne(rd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "value %d: %v\n", n+1, err)
			return 1
		}
		fmt.Fprintln(out, value)
	}
	return 0
}

// decodeOne reads a single value at the selected width and signedness and
// formats it in decimal.
func decodeOne(r io.Reader) (string, error) {
	if signed {
		switch int(width) {
		case 8:
			n, err := leb128.DecodeSigned[int8](r)
			return strconv.FormatInt(int64(n), 10), err
		case 16:
			n, err := leb128.DecodeSigned[int16](r)
			return strconv.FormatInt(int64(n), 10), err
		case 32:
			n, err := leb128.DecodeSigned[int32](r)
			return strconv.FormatInt(int64(n), 10), err
		case 64:
			n, err := leb128.DecodeSigned[int64](r)
			return strconv.FormatInt(n, 10), err
		default:
			n, err := leb128.DecodeInt128(r)
			return n.String(), err
		}
	}
	switch int(width) {
	case 8:
		n, err := leb128.DecodeUnsigned[uint8](r)
		return strconv.FormatUint(uint64(n), 10), err
	case 16:
		n, err := leb128.DecodeUnsigned[uint16](r)
		return strconv.FormatUint(uint64(n), 10), err
	case 32:
		n, err := leb128.DecodeUnsigned[uint32](r)
		return strconv.FormatUint(uint64(n), 10), err
	case 64:
		n, err := leb128.DecodeUnsigned[uint64](r)
		return strconv.FormatUint(n, 10), err
	default:
		n, err := leb128.DecodeUint128(r)
		return n.String(), err
	}
}

func dumpCmd(cmd *cobra.Command, args []string) {
	os.Exit(dump(cmd.OutOrStdout(), args))
}

func dump(out io.Writer, args []string) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	data, err := inputBytes(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if len(data) == 0 {
		fmt.Fprint(os.Stderr, "no bytes to dump\n")
		return 1
	}

	if conf != nil && conf.NoColor {
		color.NoColor = true
	}
	if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		color.NoColor = true
	}
	contSet := color.New(color.FgRed)
	contClear := color.New(color.FgGreen)
	payloadColor := color.New(color.FgCyan)

	used := 0
	for i, b := range data {
		used = i + 1
		cont := contClear.Sprint("0")
		if b&0x80 != 0 {
			cont = contSet.Sprint("1")
		}
		fmt.Fprintf(out, "%3d  0x%02x  cont=%s payload=%s shift=%d\n",
			i, b, cont, payloadColor.Sprintf("%07b", b&0x7f), i*7)
		if b&0x80 == 0 {
			break
		}
	}

	br := bytes.NewReader(data)
	var rd io.Reader = br
	if logflags.Codec() {
		rd = &traceReader{r: br, log: logflags.CodecLogger()}
	}
	value, err := decodeOne(rd)
	if err != nil {
		fmt.Fprintf(out, "%s %d-bit: %v\n", signednessName(), int(width), err)
		return 1
	}
	fmt.Fprintf(out, "%s %d-bit: %s (%d bytes)\n", signednessName(), int(width), value, used)
	if used < len(data) {
		fmt.Fprintf(os.Stderr, "Warning: %d trailing bytes ignored\n", len(data)-used)
	}
	return 0
}

func signednessName() string {
	if signed {
		return "signed"
	}
	return "unsigned"
}

func configCmd(cmd *cobra.Command, args []string) {
	os.Exit(configure(cmd.OutOrStdout(), args))
}

func configure(out io.Writer, args []string) int {
	if len(args) == 0 {
		config.ConfigureList(out, conf, "yaml")
		return 0
	}
	cfgname := args[0]
	if len(args) == 1 {
		fmt.Fprint(out, config.ConfigureListByName(conf, cfgname, "yaml"))
		return 0
	}
	rest := strings.Join(args[1:], " ")

	if cfgname == "aliases" {
		v := config.Split2PartsBySpace(rest)
		if len(v) != 2 {
			fmt.Fprint(os.Stderr, "'config aliases' needs a command name and an alias list\n")
			return 1
		}
		if conf.Aliases == nil {
			conf.Aliases = make(map[string][]string)
		}
		conf.Aliases[v[0]] = config.SplitQuotedFields(v[1], '\'')
	} else {
		field := config.ConfigureFindFieldByName(conf, cfgname, "yaml")
		if !field.CanAddr() {
			fmt.Fprintf(os.Stderr, "%q is not a configuration parameter\n", cfgname)
			return 1
		}
		if err := config.ConfigureSetSimple(rest, cfgname, field); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
	}
	if err := config.SaveConfig(conf); err != nil {
		fmt.Fprintf(os.Stderr, "could not save configuration file: %v\n", err)
		return 1
	}
	return 0
}

// inputBytes collects the encoded bytes either from hex arguments or from
// standard input.
func inputBytes(args []string) ([]byte, error) {
	if len(args) > 0 {
		return parseHexBytes(args)
	}
	data, err := ioutil.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}
	if raw {
		return data, nil
	}
	return parseHexBytes(strings.Fields(string(data)))
}

func parseHexBytes(args []string) ([]byte, error) {
	var out []byte
	for _, arg := range args {
		for _, tok := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || unicode.IsSpace(r) }) {
			tok = strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
			if len(tok)%2 == 1 {
				tok = "0" + tok
			}
			b, err := hex.DecodeString(tok)
			if err != nil {
				return nil, fmt.Errorf("invalid hex bytes %q", tok)
			}
			out = append(out, b...)
		}
	}
	return out, nil
}

// traceReader logs every byte group the codec consumes.
type traceReader struct {
	r   io.Reader
	log logflags.Logger
}

func (t *traceReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	for _, b := range p[:n] {
		t.log.Debugf("read %#02x cont=%d payload=%#02x", b, b>>7, b&0x7f)
	}
	if err != nil && err != io.EOF {
		t.log.WithError(err).Debug("read failed")
	}
	return n, err
}

// widthValue implements pflag.Value for the --width flag, restricting it to
// the widths the codec supports.
type widthValue int

func (w *widthValue) String() string { return strconv.Itoa(int(*w)) }

func (w *widthValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid width %q", s)
	}
	switch n {
	case 8, 16, 32, 64, 128:
		*w = widthValue(n)
		return nil
	}
	return fmt.Errorf("width must be 8, 16, 32, 64 or 128, not %d", n)
}

func (w *widthValue) Type() string { return "int" }
