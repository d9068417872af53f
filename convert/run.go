// Package convert implements command line actions: document conversion and
// inspection.
package convert

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"docx2html/archive"
	"docx2html/config"
	"docx2html/convert/html5"
	"docx2html/convert/jsontree"
	"docx2html/docx"
	"docx2html/images"
	"docx2html/misc"
	"docx2html/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.String("output")
	if len(dst) == 0 {
		dst = cmd.Args().Get(1)
	} else if cmd.Args().Len() > 1 {
		log.Warn("Destination specified twice, using --output", zap.String("ignoring", cmd.Args().Get(1)))
	}
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	// unknown format is an error, we never produce something user did not ask for
	format, err := config.ParseOutputFmt(cmd.String("format"))
	if err != nil {
		return err
	}

	if dir := cmd.String("assets-dir"); len(dir) > 0 {
		env.Cfg.Document.Images.AssetsDir = dir
	}
	if cmd.Bool("fragment") {
		env.Cfg.Document.Fragment = true
	}
	if err := env.LoadDocumentSettings(cmd.String("style-map")); err != nil {
		return err
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Stringer("format", format))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, format, log)
}

// process handles the core conversion logic independently of CLI framework. It
// determines the input type (directory, archive, or single file) and processes
// accordingly.
func process(ctx context.Context, src, dst string, format config.OutputFmt, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, format, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		document, err := isDocumentFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if document && len(tail) == 0 {
			// document cannot have tail
			out := documentOutput{dir: dst}
			if isOutputFile(dst, format) {
				out = documentOutput{file: dst}
			}
			if err := processDocument(ctx, head, filepath.Base(head), out, format, log); err != nil {
				return fmt.Errorf("unable to process file: %w", err)
			}
			break
		}

		archive, err := isArchiveFile(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if archive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, filepath.ToSlash(tail), "", dst, format, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}
		return fmt.Errorf("input was not recognized as DOCX document or archive (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding documents and archives and
// processes them.
func processDir(ctx context.Context, dir, dst string, format config.OutputFmt, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		document, err := isDocumentFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if document {
			count++
			src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
			if err := processDocument(ctx, path, src, documentOutput{dir: dst}, format, log); err != nil {
				log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		archive, err := isArchiveFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !archive {
			log.Debug("Skipping file, not recognized as document or archive", zap.String("file", path))
			return nil
		}
		count++
		if err := processArchive(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst, format, log); err != nil {
			log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
	return err
}

// processArchive walks all files inside archive, finds documents under
// "pathIn" and processes them. Documents are extracted to temporary directory
// first, containers need random access.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, format config.OutputFmt, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	tmpDir, err := os.MkdirTemp("", misc.GetAppName()+"-")
	if err != nil {
		return fmt.Errorf("unable to create temporary directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	cp := state.EnvFromContext(ctx).CodePage

	err = archive.Walk(path, pathIn, documentExt, func(archivePath string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		document, err := isDocumentInArchive(f)
		if err != nil {
			log.Warn("Skipping file in archive",
				zap.String("archive", archivePath), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !document {
			log.Debug("Skipping file, not recognized as document", zap.String("archive", archivePath), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		pathInArchive := f.FileHeader.Name
		if cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}

		// every document gets its own directory, base names may repeat
		docDir, err := os.MkdirTemp(tmpDir, "doc-")
		if err != nil {
			return fmt.Errorf("unable to create temporary directory: %w", err)
		}
		extracted, err := archive.Extract(f, docDir)
		if err != nil {
			log.Error("Unable to extract file from archive",
				zap.String("archive", archivePath), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}

		if err := processDocument(ctx, extracted, filepath.Join(pathOut, filepath.FromSlash(pathInArchive)), documentOutput{dir: dst}, format, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", archivePath), zap.String("file", f.FileHeader.Name), zap.Error(err))
		}
		return nil
	})
	return err
}

// documentOutput is either destination directory or exact output file name.
type documentOutput struct {
	dir  string
	file string
}

// processDocument converts single document container at "path". "src" is
// part of the source path (always including file name) relative to the
// original path. When actual file was specified it will be just base file
// name without a path. When looking inside archive or directory it will be
// relative path inside archive or directory (including base file name).
func processDocument(ctx context.Context, path, src string, out documentOutput, format config.OutputFmt, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var refID, outputName string

	// names debug report entries, document identifiers are not unique
	runID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("unable to generate run UUID: %w", err)
	}

	log.Info("Conversion starting", zap.String("from", src))
	defer func(start time.Time) {
		// a single broken document should not stop batch processing
		if r := recover(); r != nil {
			log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		} else if rerr == nil {
			log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.String("ref_id", refID))
		}
	}(time.Now())

	container := archive.NewContainer()
	defer container.Close()

	doc, err := docx.Open(ctx, container, path, log.Named("docx"))
	if err != nil {
		return fmt.Errorf("unable to read document (%s): %w", src, err)
	}

	// Make sure reference ID is valid UUID
	refID = doc.Properties.Identifier
	if _, err := uuid.Parse(refID); err != nil {
		log.Debug("Document has no valid identifier, using generated one", zap.String("identifier", refID), zap.Stringer("id", runID))
		refID = runID.String()
	}

	// Save parsed document for debugging
	if env.Rpt != nil {
		env.Rpt.StoreData(fmt.Sprintf("%s-%s.txt", misc.GetAppName(), runID), []byte(doc.String()))
	}

	outputName = out.file
	if len(outputName) == 0 {
		outputName = buildOutputPath(doc, src, out.dir, format, env)
	}

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	// Generate output in the requested format
	var data []byte
	switch format {
	case config.OutputFmtHtml:
		data, err = renderHTML(doc, container, outputName, env, log)
	case config.OutputFmtJson:
		data, err = jsontree.Transform(doc.Sections, env.Cfg.Document.JSON.Indent)
	default:
		err = fmt.Errorf("unsupported output format %s", format)
	}
	if err != nil {
		return fmt.Errorf("unable to generate output: %w", err)
	}
	if len(data) == 0 {
		log.Warn("Document has no content", zap.String("from", src))
	}
	if err := os.WriteFile(outputName, data, 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}

	// Store conversion result for debugging
	if env.Rpt != nil {
		env.Rpt.Store(fmt.Sprintf("result-%s%s", runID, filepath.Ext(outputName)), outputName)
	}
	return nil
}

func renderHTML(doc *docx.Document, src images.Source, outputName string, env *state.LocalEnv, log *zap.Logger) ([]byte, error) {
	cfg := &env.Cfg.Document

	title := cfg.Title
	if cfg.UseMetadataTitle && len(doc.Properties.Title) > 0 {
		title = doc.Properties.Title
	}

	opts := []html5.Option{
		html5.WithLogger(log.Named("html5")),
		html5.WithRules(env.Rules),
		html5.WithTitle(title),
		html5.WithLanguage(cfg.Language),
		html5.WithStylesheet(string(env.Stylesheet)),
	}
	if len(cfg.Images.AssetsDir) > 0 {
		opts = append(opts, html5.WithImages(images.NewExtractor(src, doc.Path, cfg.Images.AssetsDir,
			images.WithOutputFile(outputName),
			images.WithMaxWidth(cfg.Images.MaxWidth),
			images.WithLogger(log.Named("images")),
		)))
	}
	r := html5.New(env.StyleMap, opts...)

	render := r.Transform
	if cfg.Fragment {
		render = r.Fragment
	}
	out, err := render(doc.Sections)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
